package awsprobe

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

type logsAPI interface {
	DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
}

func (p *Probes) discoverLogGroups(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	paginator := cloudwatchlogs.NewDescribeLogGroupsPaginator(p.clients(region).logs, &cloudwatchlogs.DescribeLogGroupsInput{})

	var out []inventory.ResourceRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("DescribeLogGroups", err)
		}
		for _, group := range page.LogGroups {
			name := aws.ToString(group.LogGroupName)
			rec := inventory.ResourceRecord{
				ID:    name,
				Name:  name,
				State: "active",
				Attributes: map[string]any{
					// nil retention means never-expire, which reads as 0.
					inventory.AttrRetentionDays: int(aws.ToInt32(group.RetentionInDays)),
					inventory.AttrStoredBytes:   float64(aws.ToInt64(group.StoredBytes)),
				},
			}
			if group.CreationTime != nil {
				rec.Attributes[inventory.AttrCreatedAt] = time.UnixMilli(aws.ToInt64(group.CreationTime)).UTC()
			}
			if f.Match(rec) {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func logGroupMetricDefs(rec inventory.ResourceRecord) []inventory.MetricDefinition {
	return []inventory.MetricDefinition{{
		Name:       inventory.MetricStorageBytes,
		Unit:       "bytes",
		Statistics: []inventory.Statistic{inventory.StatTotal},
		Query:      inventory.MetricQuery{Namespace: "AWS/Logs", MetricName: "IncomingBytes", Dimensions: map[string]string{"LogGroupName": rec.ID}},
		Period:     24 * time.Hour,
		NoDataNote: "log groups emit metrics only when events arrive",
	}}
}
