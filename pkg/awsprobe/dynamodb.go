package awsprobe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/applicationautoscaling"
	aastypes "github.com/aws/aws-sdk-go-v2/service/applicationautoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

type dynamoAPI interface {
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type scalingAPI interface {
	DescribeScalingPolicies(ctx context.Context, params *applicationautoscaling.DescribeScalingPoliciesInput, optFns ...func(*applicationautoscaling.Options)) (*applicationautoscaling.DescribeScalingPoliciesOutput, error)
}

func (p *Probes) discoverTables(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	rc := p.clients(region)
	paginator := dynamodb.NewListTablesPaginator(rc.dynamo, &dynamodb.ListTablesInput{})

	var out []inventory.ResourceRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("ListTables", err)
		}
		for _, name := range page.TableNames {
			desc, err := rc.dynamo.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
			if err != nil {
				p.log.Debug("table describe failed", "table", name, "error", err)
				continue
			}
			table := desc.Table
			if table == nil {
				continue
			}

			rec := inventory.ResourceRecord{
				ID:    name,
				Name:  name,
				State: strings.ToLower(string(table.TableStatus)),
				Attributes: map[string]any{
					inventory.AttrBillingMode: tableBillingMode(table),
					inventory.AttrStoredBytes: float64(aws.ToInt64(table.TableSizeBytes)),
					"ItemCount":               aws.ToInt64(table.ItemCount),
				},
			}
			if tp := table.ProvisionedThroughput; tp != nil {
				rec.Attributes["ProvisionedRCU"] = float64(aws.ToInt64(tp.ReadCapacityUnits))
				rec.Attributes["ProvisionedWCU"] = float64(aws.ToInt64(tp.WriteCapacityUnits))
			}
			if table.CreationDateTime != nil {
				rec.Attributes[inventory.AttrCreatedAt] = *table.CreationDateTime
			}
			if !f.Match(rec) {
				continue
			}
			if scaling, ok := p.tableAutoscaling(ctx, rc.scaling, name); ok {
				rec.Attributes[inventory.AttrAutoscaling] = scaling
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// tableBillingMode reads the capacity mode. Tables created before on-demand
// existed carry no billing mode summary and are provisioned.
func tableBillingMode(table *types.TableDescription) string {
	if table.BillingModeSummary == nil {
		return string(types.BillingModeProvisioned)
	}
	return string(table.BillingModeSummary.BillingMode)
}

// tableAutoscaling checks for registered scaling policies. The check fails
// open because it needs a separate service permission many audit roles
// lack.
func (p *Probes) tableAutoscaling(ctx context.Context, api scalingAPI, table string) (bool, bool) {
	out, err := api.DescribeScalingPolicies(ctx, &applicationautoscaling.DescribeScalingPoliciesInput{
		ServiceNamespace: aastypes.ServiceNamespaceDynamodb,
		ResourceId:       aws.String(fmt.Sprintf("table/%s", table)),
	})
	if err != nil {
		p.log.Debug("table autoscaling check failed", "table", table, "error", err)
		return false, false
	}
	return len(out.ScalingPolicies) > 0, true
}

func tableMetricDefs(rec inventory.ResourceRecord) []inventory.MetricDefinition {
	dims := map[string]string{"TableName": rec.ID}
	return []inventory.MetricDefinition{
		{
			Name:       inventory.MetricReadOps,
			Unit:       "count",
			Statistics: []inventory.Statistic{inventory.StatTotal},
			Query:      inventory.MetricQuery{Namespace: "AWS/DynamoDB", MetricName: "ConsumedReadCapacityUnits", Dimensions: dims},
			Period:     24 * time.Hour,
			NoDataNote: "consumption metrics appear once the table serves traffic",
		},
		{
			Name:       inventory.MetricWriteOps,
			Unit:       "count",
			Statistics: []inventory.Statistic{inventory.StatTotal},
			Query:      inventory.MetricQuery{Namespace: "AWS/DynamoDB", MetricName: "ConsumedWriteCapacityUnits", Dimensions: dims},
			Period:     24 * time.Hour,
			NoDataNote: "consumption metrics appear once the table serves traffic",
		},
	}
}
