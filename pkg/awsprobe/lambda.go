package awsprobe

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

type lambdaAPI interface {
	ListFunctions(ctx context.Context, params *lambda.ListFunctionsInput, optFns ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error)
}

func (p *Probes) discoverFunctions(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	paginator := lambda.NewListFunctionsPaginator(p.clients(region).lambda, &lambda.ListFunctionsInput{})

	var out []inventory.ResourceRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("ListFunctions", err)
		}
		for _, fn := range page.Functions {
			name := aws.ToString(fn.FunctionName)
			rec := inventory.ResourceRecord{
				ID:    name,
				Name:  name,
				State: "active",
				Attributes: map[string]any{
					inventory.AttrMemoryMB: int(aws.ToInt32(fn.MemorySize)),
					"Runtime":              string(fn.Runtime),
					"CodeSizeBytes":        fn.CodeSize,
					"Arn":                  aws.ToString(fn.FunctionArn),
				},
			}
			if f.Match(rec) {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func functionMetricDefs(rec inventory.ResourceRecord) []inventory.MetricDefinition {
	dims := map[string]string{"FunctionName": rec.ID}
	return []inventory.MetricDefinition{
		{
			Name:       inventory.MetricInvocations,
			Unit:       "count",
			Statistics: []inventory.Statistic{inventory.StatTotal},
			Query:      inventory.MetricQuery{Namespace: "AWS/Lambda", MetricName: "Invocations", Dimensions: dims},
			NoDataNote: "functions only emit metrics after their first invocation",
		},
		{
			Name:       inventory.MetricDuration,
			Unit:       "milliseconds",
			Statistics: []inventory.Statistic{inventory.StatAverage, inventory.StatMaximum},
			Query:      inventory.MetricQuery{Namespace: "AWS/Lambda", MetricName: "Duration", Dimensions: dims},
			NoDataNote: "functions only emit metrics after their first invocation",
		},
	}
}
