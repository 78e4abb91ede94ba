package awsprobe

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

type ecsAPI interface {
	ListClusters(ctx context.Context, params *ecs.ListClustersInput, optFns ...func(*ecs.Options)) (*ecs.ListClustersOutput, error)
	DescribeClusters(ctx context.Context, params *ecs.DescribeClustersInput, optFns ...func(*ecs.Options)) (*ecs.DescribeClustersOutput, error)
}

// describeClustersBatch is the DescribeClusters ARN limit.
const describeClustersBatch = 100

func (p *Probes) discoverECSClusters(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	api := p.clients(region).ecs

	var arns []string
	paginator := ecs.NewListClustersPaginator(api, &ecs.ListClustersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("ListClusters", err)
		}
		arns = append(arns, page.ClusterArns...)
	}

	var out []inventory.ResourceRecord
	for start := 0; start < len(arns); start += describeClustersBatch {
		end := min(start+describeClustersBatch, len(arns))
		desc, err := api.DescribeClusters(ctx, &ecs.DescribeClustersInput{
			Clusters: arns[start:end],
			Include:  []types.ClusterField{types.ClusterFieldTags},
		})
		if err != nil {
			return nil, classify("DescribeClusters", err)
		}
		for _, cluster := range desc.Clusters {
			name := aws.ToString(cluster.ClusterName)
			rec := inventory.ResourceRecord{
				ID:    name,
				Name:  name,
				State: strings.ToLower(aws.ToString(cluster.Status)),
				Tags:  make(map[string]string, len(cluster.Tags)),
				Attributes: map[string]any{
					inventory.AttrNodeCount: int(cluster.RegisteredContainerInstancesCount),
					"RunningTasks":          int(cluster.RunningTasksCount),
					"PendingTasks":          int(cluster.PendingTasksCount),
					"ActiveServices":        int(cluster.ActiveServicesCount),
				},
			}
			for _, t := range cluster.Tags {
				rec.Tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
			}
			if f.Match(rec) {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func ecsClusterMetricDefs(rec inventory.ResourceRecord) []inventory.MetricDefinition {
	return []inventory.MetricDefinition{{
		Name:       inventory.MetricCPU,
		Unit:       "percent",
		Statistics: []inventory.Statistic{inventory.StatAverage, inventory.StatMaximum},
		Query:      inventory.MetricQuery{Namespace: "AWS/ECS", MetricName: "CPUUtilization", Dimensions: map[string]string{"ClusterName": rec.ID}},
		NoDataNote: "cluster metrics appear once a service runs tasks",
	}}
}
