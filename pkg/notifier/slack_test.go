package notifier

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gaugeworks/cloudgauge/pkg/audit/cost"
	"github.com/gaugeworks/cloudgauge/pkg/audit/findings"
	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

type capturedPayload struct {
	Channel string           `json:"channel"`
	Blocks  []map[string]any `json:"blocks"`
}

func captureServer(t *testing.T, status int, got *capturedPayload, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected application/json, got %q", ct)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		w.WriteHeader(status)
	}))
}

func blockText(b map[string]any) string {
	text, ok := b["text"].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := text["text"].(string)
	return s
}

func TestSendScanReportPostsBlocks(t *testing.T) {
	var got capturedPayload
	var calls int
	srv := captureServer(t, http.StatusOK, &got, &calls)
	defer srv.Close()

	sum := ScanSummary{
		Account:       "123456789012",
		Regions:       []string{"us-east-1", "eu-west-1"},
		TotalScanned:  26,
		TotalFindings: 14,
		TotalSavings:  1200.50,
		SecurityScore: 10,
		QuickWins: []findings.Finding{{
			Rule:                       "idle-compute",
			Resource:                   &inventory.Key{Type: "ec2-instance", ID: "i-0idle", Region: "us-east-1"},
			EstimatedMonthlySavingsUSD: 59.9,
		}},
		Partial: true,
	}
	client := NewSlackClient(srv.URL, "#infra-alerts")
	if err := client.SendScanReport(sum); err != nil {
		t.Fatalf("SendScanReport: %v", err)
	}

	if calls != 1 {
		t.Fatalf("Expected 1 webhook call, got %d", calls)
	}
	if got.Channel != "#infra-alerts" {
		t.Errorf("Expected channel override, got %q", got.Channel)
	}
	if len(got.Blocks) == 0 {
		t.Fatal("Expected block payload")
	}
	if header := blockText(got.Blocks[0]); !strings.Contains(header, "🔴") {
		t.Errorf("Expected red status for savings over 1000, got %q", header)
	}

	var sawQuickWins, sawImpact, sawPartial bool
	for _, b := range got.Blocks {
		text := blockText(b)
		if strings.Contains(text, "Quick wins") && strings.Contains(text, "idle-compute") {
			sawQuickWins = true
		}
		if strings.Contains(text, "High Financial Impact") {
			sawImpact = true
		}
		if elements, ok := b["elements"].([]any); ok {
			for _, e := range elements {
				if em, ok := e.(map[string]any); ok {
					if s, _ := em["text"].(string); strings.Contains(s, "Partial scan") {
						sawPartial = true
					}
				}
			}
		}
	}
	if !sawQuickWins {
		t.Error("Expected a quick wins section")
	}
	if !sawImpact {
		t.Error("Expected the high impact alert for savings over 500")
	}
	if !sawPartial {
		t.Error("Expected the partial scan context")
	}
}

func TestSendScanReportNoWebhookIsNoop(t *testing.T) {
	client := NewSlackClient("", "")
	if err := client.SendScanReport(ScanSummary{TotalSavings: 10}); err != nil {
		t.Fatalf("Expected a no-op without a webhook, got %v", err)
	}
}

func TestSendScanReportNon200(t *testing.T) {
	var got capturedPayload
	var calls int
	srv := captureServer(t, http.StatusInternalServerError, &got, &calls)
	defer srv.Close()

	client := NewSlackClient(srv.URL, "")
	if err := client.SendScanReport(ScanSummary{}); err == nil {
		t.Fatal("Expected an error for a non-200 response")
	}
}

func TestSendCostReportCapsTopServices(t *testing.T) {
	var got capturedPayload
	var calls int
	srv := captureServer(t, http.StatusOK, &got, &calls)
	defer srv.Close()

	var top []cost.Entry
	for _, name := range []string{"EC2", "RDS", "S3", "Lambda", "EKS", "NAT"} {
		top = append(top, cost.Entry{Scope: cost.ScopeService, Key: name, AmountUSD: 10, PercentageOfTotal: 5})
	}
	client := NewSlackClient(srv.URL, "")
	if err := client.SendCostReport(30, 1209.60, top); err != nil {
		t.Fatalf("SendCostReport: %v", err)
	}

	if header := blockText(got.Blocks[0]); !strings.Contains(header, "$1209.60") {
		t.Errorf("Expected the total in the header, got %q", header)
	}
	body := blockText(got.Blocks[1])
	if strings.Contains(body, "NAT") {
		t.Error("Expected the sixth service to be dropped")
	}
	if got := strings.Count(body, "•"); got != 5 {
		t.Errorf("Expected 5 service lines, got %d", got)
	}
}
