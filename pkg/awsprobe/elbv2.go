package awsprobe

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

type elbAPI interface {
	DescribeLoadBalancers(ctx context.Context, params *elbv2.DescribeLoadBalancersInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeLoadBalancersOutput, error)
	DescribeTags(ctx context.Context, params *elbv2.DescribeTagsInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeTagsOutput, error)
}

type wafAPI interface {
	GetWebACLForResource(ctx context.Context, params *wafv2.GetWebACLForResourceInput, optFns ...func(*wafv2.Options)) (*wafv2.GetWebACLForResourceOutput, error)
}

// describeTagsBatch is the DescribeTags ARN limit.
const describeTagsBatch = 20

func (p *Probes) discoverLoadBalancers(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	rc := p.clients(region)
	paginator := elbv2.NewDescribeLoadBalancersPaginator(rc.elb, &elbv2.DescribeLoadBalancersInput{})

	var balancers []types.LoadBalancer
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("DescribeLoadBalancers", err)
		}
		balancers = append(balancers, page.LoadBalancers...)
	}

	tags := p.loadBalancerTags(ctx, rc.elb, balancers)

	var out []inventory.ResourceRecord
	for _, lb := range balancers {
		arn := aws.ToString(lb.LoadBalancerArn)
		rec := inventory.ResourceRecord{
			ID:   arn,
			Name: aws.ToString(lb.LoadBalancerName),
			Tags: tags[arn],
			Attributes: map[string]any{
				inventory.AttrInternetFacing: lb.Scheme == types.LoadBalancerSchemeEnumInternetFacing,
				"LoadBalancerType":           string(lb.Type),
				"MetricDimension":            metricDimension(arn),
			},
		}
		if lb.State != nil {
			rec.State = string(lb.State.Code)
		}
		if lb.CreatedTime != nil {
			rec.Attributes[inventory.AttrCreatedAt] = *lb.CreatedTime
		}
		if !f.Match(rec) {
			continue
		}
		if lb.Type == types.LoadBalancerTypeEnumApplication {
			rec.Attributes[inventory.AttrWAFProtected] = p.hasWebACL(ctx, rc.waf, arn)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (p *Probes) loadBalancerTags(ctx context.Context, api elbAPI, balancers []types.LoadBalancer) map[string]map[string]string {
	tags := make(map[string]map[string]string, len(balancers))
	for start := 0; start < len(balancers); start += describeTagsBatch {
		end := min(start+describeTagsBatch, len(balancers))
		arns := make([]string, 0, end-start)
		for _, lb := range balancers[start:end] {
			arns = append(arns, aws.ToString(lb.LoadBalancerArn))
		}
		out, err := api.DescribeTags(ctx, &elbv2.DescribeTagsInput{ResourceArns: arns})
		if err != nil {
			p.log.Debug("load balancer tags unavailable", "error", err)
			continue
		}
		for _, desc := range out.TagDescriptions {
			m := make(map[string]string, len(desc.Tags))
			for _, t := range desc.Tags {
				m[aws.ToString(t.Key)] = aws.ToString(t.Value)
			}
			tags[aws.ToString(desc.ResourceArn)] = m
		}
	}
	return tags
}

func (p *Probes) hasWebACL(ctx context.Context, api wafAPI, arn string) bool {
	out, err := api.GetWebACLForResource(ctx, &wafv2.GetWebACLForResourceInput{ResourceArn: aws.String(arn)})
	if err != nil {
		p.log.Debug("waf association check failed", "resource", arn, "error", err)
		return false
	}
	return out.WebACL != nil
}

// metricDimension extracts the "app/name/id" suffix CloudWatch keys load
// balancer metrics on.
func metricDimension(arn string) string {
	const marker = "loadbalancer/"
	if i := strings.Index(arn, marker); i >= 0 {
		return arn[i+len(marker):]
	}
	return arn
}

// loadBalancerMetricDefs varies by balancer type: request counts exist for
// application balancers, flow counts for network balancers, nothing useful
// for gateway balancers.
func loadBalancerMetricDefs(rec inventory.ResourceRecord) []inventory.MetricDefinition {
	dim, _ := rec.StringAttr("MetricDimension")
	dims := map[string]string{"LoadBalancer": dim}
	lbType, _ := rec.StringAttr("LoadBalancerType")

	switch lbType {
	case "network":
		return []inventory.MetricDefinition{{
			Name:       inventory.MetricRequests,
			Unit:       "count",
			Statistics: []inventory.Statistic{inventory.StatTotal},
			Query:      inventory.MetricQuery{Namespace: "AWS/NetworkELB", MetricName: "NewFlowCount", Dimensions: dims},
			NoDataNote: "flow metrics appear once the balancer accepts traffic",
		}}
	case "gateway":
		return nil
	default:
		return []inventory.MetricDefinition{{
			Name:       inventory.MetricRequests,
			Unit:       "count",
			Statistics: []inventory.Statistic{inventory.StatTotal},
			Query:      inventory.MetricQuery{Namespace: "AWS/ApplicationELB", MetricName: "RequestCount", Dimensions: dims},
			NoDataNote: "request metrics appear once the balancer serves traffic",
		}}
	}
}
