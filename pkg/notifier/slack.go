// Package notifier delivers scan summaries to Slack webhooks. Delivery is
// fire-and-forget from the pipeline's point of view; the engine never
// learns whether anyone read the message.
package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gaugeworks/cloudgauge/pkg/audit/cost"
	"github.com/gaugeworks/cloudgauge/pkg/audit/findings"
)

// ScanSummary is the slice of a scan result worth pushing to a channel.
type ScanSummary struct {
	Account       string
	Regions       []string
	TotalScanned  int
	TotalFindings int
	TotalSavings  float64
	SecurityScore int
	QuickWins     []findings.Finding
	Partial       bool
}

// SlackClient posts block-kit payloads to an incoming webhook.
type SlackClient struct {
	WebhookURL string
	Channel    string // optional channel override
}

// NewSlackClient initializes the Slack integration.
func NewSlackClient(webhookURL, channel string) *SlackClient {
	return &SlackClient{
		WebhookURL: webhookURL,
		Channel:    channel,
	}
}

// SendScanReport posts the scan summary. An unset webhook URL is a no-op
// so callers can wire the client unconditionally.
func (s *SlackClient) SendScanReport(sum ScanSummary) error {
	if s.WebhookURL == "" {
		return nil
	}
	return s.send(s.scanPayload(sum))
}

// SendCostReport posts the spend summary for one aggregation window.
func (s *SlackClient) SendCostReport(days int, totalUSD float64, top []cost.Entry) error {
	if s.WebhookURL == "" {
		return nil
	}

	var lines []string
	for i, e := range top {
		if i == 5 {
			break
		}
		lines = append(lines, fmt.Sprintf("• %s: $%.2f (%.1f%%)", e.Key, e.AmountUSD, e.PercentageOfTotal))
	}

	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": fmt.Sprintf("💸 Cloud Spend: $%.2f over %d days", totalUSD, days),
			},
		},
	}
	if len(lines) > 0 {
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": "*Top services:*\n" + strings.Join(lines, "\n"),
			},
		})
	}

	payload := map[string]any{"blocks": blocks}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	return s.send(payload)
}

func (s *SlackClient) scanPayload(sum ScanSummary) map[string]any {
	statusIcon := "🟢"
	if sum.TotalSavings > 1000 {
		statusIcon = "🔴"
	} else if sum.TotalSavings > 0 {
		statusIcon = "🟡"
	}

	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": fmt.Sprintf("%s Cloud Audit Report", statusIcon),
			},
		},
		{
			"type": "context",
			"elements": []map[string]any{
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Scan Date:* %s | *Account:* %s | *Regions:* %s",
						time.Now().Format("2006-01-02"), sum.Account, strings.Join(sum.Regions, ", ")),
				},
			},
		},
		{
			"type": "divider",
		},
		{
			"type": "section",
			"fields": []map[string]any{
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Potential Savings:*\n$%.2f/mo", sum.TotalSavings),
				},
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Resources Analyzed:*\n%d", sum.TotalScanned),
				},
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Findings:*\n%d", sum.TotalFindings),
				},
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Security Score:*\n%d/100", sum.SecurityScore),
				},
			},
		},
	}

	if len(sum.QuickWins) > 0 {
		var lines []string
		for i, f := range sum.QuickWins {
			if i == 3 {
				break
			}
			target := "-"
			if f.Resource != nil {
				target = f.Resource.ID
			}
			lines = append(lines, fmt.Sprintf("• *%s* %s: $%.2f/mo", f.Rule, target, f.EstimatedMonthlySavingsUSD))
		}
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": "*Quick wins:*\n" + strings.Join(lines, "\n"),
			},
		})
	}

	if sum.TotalSavings > 500 {
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": "⚠️ *High Financial Impact Detected*\nSignificant unused infrastructure has been identified. Immediate review is recommended.",
			},
		})
	}

	if sum.Partial {
		blocks = append(blocks, map[string]any{
			"type": "context",
			"elements": []map[string]any{
				{
					"type": "mrkdwn",
					"text": "Partial scan: some probe units were skipped. Check the diagnostics in the full export.",
				},
			},
		})
	}

	payload := map[string]any{"blocks": blocks}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	return payload
}

func (s *SlackClient) send(payload map[string]any) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.WebhookURL, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-200 status from slack: %d", resp.StatusCode)
	}
	return nil
}
