package awsprobe

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

type eksAPI interface {
	ListClusters(ctx context.Context, params *eks.ListClustersInput, optFns ...func(*eks.Options)) (*eks.ListClustersOutput, error)
	DescribeCluster(ctx context.Context, params *eks.DescribeClusterInput, optFns ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
	ListNodegroups(ctx context.Context, params *eks.ListNodegroupsInput, optFns ...func(*eks.Options)) (*eks.ListNodegroupsOutput, error)
	DescribeNodegroup(ctx context.Context, params *eks.DescribeNodegroupInput, optFns ...func(*eks.Options)) (*eks.DescribeNodegroupOutput, error)
}

func (p *Probes) discoverKubeClusters(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	api := p.clients(region).eks
	paginator := eks.NewListClustersPaginator(api, &eks.ListClustersInput{})

	var out []inventory.ResourceRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("ListClusters", err)
		}
		for _, name := range page.Clusters {
			desc, err := api.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: aws.String(name)})
			if err != nil {
				p.log.Debug("cluster describe failed", "cluster", name, "error", err)
				continue
			}
			cluster := desc.Cluster
			if cluster == nil {
				continue
			}

			rec := inventory.ResourceRecord{
				ID:    name,
				Name:  name,
				State: strings.ToLower(string(cluster.Status)),
				Tags:  cluster.Tags,
				Attributes: map[string]any{
					"Version": aws.ToString(cluster.Version),
				},
			}
			if cluster.CreatedAt != nil {
				rec.Attributes[inventory.AttrCreatedAt] = *cluster.CreatedAt
			}
			if !f.Match(rec) {
				continue
			}
			if nodes, ok := p.clusterNodeCount(ctx, api, name); ok {
				rec.Attributes[inventory.AttrNodeCount] = nodes
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// clusterNodeCount sums the desired size of every managed node group.
// Self-managed and Fargate capacity is invisible here; the kube enricher
// refines the count when a kubeconfig is available.
func (p *Probes) clusterNodeCount(ctx context.Context, api eksAPI, cluster string) (int, bool) {
	total := 0
	paginator := eks.NewListNodegroupsPaginator(api, &eks.ListNodegroupsInput{ClusterName: aws.String(cluster)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			p.log.Debug("node group listing failed", "cluster", cluster, "error", err)
			return 0, false
		}
		for _, ngName := range page.Nodegroups {
			ng, err := api.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
				ClusterName:   aws.String(cluster),
				NodegroupName: aws.String(ngName),
			})
			if err != nil {
				p.log.Debug("node group describe failed", "cluster", cluster, "nodegroup", ngName, "error", err)
				return 0, false
			}
			if ng.Nodegroup != nil && ng.Nodegroup.ScalingConfig != nil {
				total += int(aws.ToInt32(ng.Nodegroup.ScalingConfig.DesiredSize))
			}
		}
	}
	return total, true
}

func kubeClusterMetricDefs(rec inventory.ResourceRecord) []inventory.MetricDefinition {
	return []inventory.MetricDefinition{{
		Name:       inventory.MetricCPU,
		Unit:       "percent",
		Statistics: []inventory.Statistic{inventory.StatAverage, inventory.StatMaximum},
		Query:      inventory.MetricQuery{Namespace: "ContainerInsights", MetricName: "node_cpu_utilization", Dimensions: map[string]string{"ClusterName": rec.ID}},
		NoDataNote: "cluster metrics require the observability add-on",
	}}
}
