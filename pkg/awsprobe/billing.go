package awsprobe

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
)

const billingDateLayout = "2006-01-02"

type costExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// Billing implements cost.BillingSource over Cost Explorer. The API is
// global and served from us-east-1 regardless of where the spend happened.
type Billing struct {
	api costExplorerAPI
}

// NewBilling builds the Cost Explorer-backed billing source.
func NewBilling(sess *Session) *Billing {
	return &Billing{api: costexplorer.NewFromConfig(sess.ConfigFor("us-east-1"))}
}

// TotalsByService returns unblended spend per service over [start, end),
// restricted to regions when the list is non-empty.
func (b *Billing) TotalsByService(ctx context.Context, regions []string, start, end time.Time) (map[string]float64, error) {
	return b.grouped(ctx, types.GroupDefinition{
		Type: types.GroupDefinitionTypeDimension,
		Key:  aws.String("SERVICE"),
	}, regionFilter(regions), start, end)
}

// TotalsByRegion returns unblended spend per region over [start, end).
func (b *Billing) TotalsByRegion(ctx context.Context, regions []string, start, end time.Time) (map[string]float64, error) {
	return b.grouped(ctx, types.GroupDefinition{
		Type: types.GroupDefinitionTypeDimension,
		Key:  aws.String("REGION"),
	}, regionFilter(regions), start, end)
}

// CostByTag returns spend per value of the allocation tag key. Cost
// Explorer prefixes each group key with "<tagKey>$"; untagged spend comes
// back with an empty value and is dropped.
func (b *Billing) CostByTag(ctx context.Context, tagKey string, start, end time.Time) (map[string]float64, error) {
	grouped, err := b.grouped(ctx, types.GroupDefinition{
		Type: types.GroupDefinitionTypeTag,
		Key:  aws.String(tagKey),
	}, nil, start, end)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(grouped))
	for key, amount := range grouped {
		if i := strings.Index(key, "$"); i >= 0 {
			key = key[i+1:]
		}
		if key == "" {
			continue
		}
		out[key] += amount
	}
	return out, nil
}

// grouped runs one GetCostAndUsage aggregation and sums the daily buckets
// per group key. Pagination is manual; Cost Explorer has no paginator
// helper.
func (b *Billing) grouped(ctx context.Context, group types.GroupDefinition, filter *types.Expression, start, end time.Time) (map[string]float64, error) {
	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(start.Format(billingDateLayout)),
			End:   aws.String(end.Format(billingDateLayout)),
		},
		Granularity: types.GranularityDaily,
		Metrics:     []string{"UnblendedCost"},
		GroupBy:     []types.GroupDefinition{group},
		Filter:      filter,
	}

	totals := make(map[string]float64)
	for {
		out, err := b.api.GetCostAndUsage(ctx, input)
		if err != nil {
			return nil, classify("GetCostAndUsage", err)
		}
		for _, result := range out.ResultsByTime {
			for _, g := range result.Groups {
				if len(g.Keys) == 0 {
					continue
				}
				metric, ok := g.Metrics["UnblendedCost"]
				if !ok || metric.Amount == nil {
					continue
				}
				amount, err := strconv.ParseFloat(aws.ToString(metric.Amount), 64)
				if err != nil {
					continue
				}
				totals[g.Keys[0]] += amount
			}
		}
		if aws.ToString(out.NextPageToken) == "" {
			return totals, nil
		}
		input.NextPageToken = out.NextPageToken
	}
}

func regionFilter(regions []string) *types.Expression {
	if len(regions) == 0 {
		return nil
	}
	return &types.Expression{
		Dimensions: &types.DimensionValues{
			Key:    types.DimensionRegion,
			Values: regions,
		},
	}
}
