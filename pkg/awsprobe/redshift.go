package awsprobe

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshift"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

type redshiftAPI interface {
	DescribeClusters(ctx context.Context, params *redshift.DescribeClustersInput, optFns ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error)
}

func (p *Probes) discoverWarehouses(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	paginator := redshift.NewDescribeClustersPaginator(p.clients(region).redshift, &redshift.DescribeClustersInput{})

	var out []inventory.ResourceRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("DescribeClusters", err)
		}
		for _, cluster := range page.Clusters {
			id := aws.ToString(cluster.ClusterIdentifier)
			rec := inventory.ResourceRecord{
				ID:    id,
				Name:  id,
				State: aws.ToString(cluster.ClusterStatus),
				Tags:  make(map[string]string, len(cluster.Tags)),
				Attributes: map[string]any{
					inventory.AttrInstanceClass: aws.ToString(cluster.NodeType),
					inventory.AttrNodeCount:     int(aws.ToInt32(cluster.NumberOfNodes)),
					inventory.AttrEncrypted:     aws.ToBool(cluster.Encrypted),
					"Database":                  aws.ToString(cluster.DBName),
				},
			}
			for _, t := range cluster.Tags {
				rec.Tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
			}
			if cluster.ClusterCreateTime != nil {
				rec.Attributes[inventory.AttrCreatedAt] = *cluster.ClusterCreateTime
			}
			if f.Match(rec) {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func warehouseMetricDefs(rec inventory.ResourceRecord) []inventory.MetricDefinition {
	dims := map[string]string{"ClusterIdentifier": rec.ID}
	return []inventory.MetricDefinition{
		{
			Name:       inventory.MetricCPU,
			Unit:       "percent",
			Statistics: []inventory.Statistic{inventory.StatAverage, inventory.StatMaximum},
			Query:      inventory.MetricQuery{Namespace: "AWS/Redshift", MetricName: "CPUUtilization", Dimensions: dims},
		},
		{
			Name:       inventory.MetricConnections,
			Unit:       "count",
			Statistics: []inventory.Statistic{inventory.StatAverage, inventory.StatMaximum},
			Query:      inventory.MetricQuery{Namespace: "AWS/Redshift", MetricName: "DatabaseConnections", Dimensions: dims},
			NoDataNote: "connection metrics appear after the first client connects",
		},
	}
}
