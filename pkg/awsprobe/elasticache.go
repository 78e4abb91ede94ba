package awsprobe

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

type cacheAPI interface {
	DescribeCacheClusters(ctx context.Context, params *elasticache.DescribeCacheClustersInput, optFns ...func(*elasticache.Options)) (*elasticache.DescribeCacheClustersOutput, error)
}

func (p *Probes) discoverCacheClusters(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	paginator := elasticache.NewDescribeCacheClustersPaginator(p.clients(region).cache, &elasticache.DescribeCacheClustersInput{
		ShowCacheNodeInfo: aws.Bool(true),
	})

	var out []inventory.ResourceRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("DescribeCacheClusters", err)
		}
		for _, cluster := range page.CacheClusters {
			id := aws.ToString(cluster.CacheClusterId)
			rec := inventory.ResourceRecord{
				ID:    id,
				Name:  id,
				State: aws.ToString(cluster.CacheClusterStatus),
				Attributes: map[string]any{
					inventory.AttrInstanceClass: aws.ToString(cluster.CacheNodeType),
					inventory.AttrEngine:        aws.ToString(cluster.Engine),
					inventory.AttrNodeCount:     int(aws.ToInt32(cluster.NumCacheNodes)),
					"EngineVersion":             aws.ToString(cluster.EngineVersion),
				},
			}
			if cluster.CacheClusterCreateTime != nil {
				rec.Attributes[inventory.AttrCreatedAt] = *cluster.CacheClusterCreateTime
			}
			if f.Match(rec) {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func cacheMetricDefs(rec inventory.ResourceRecord) []inventory.MetricDefinition {
	dims := map[string]string{"CacheClusterId": rec.ID}
	return []inventory.MetricDefinition{
		{
			Name:       inventory.MetricCPU,
			Unit:       "percent",
			Statistics: []inventory.Statistic{inventory.StatAverage, inventory.StatMaximum},
			Query:      inventory.MetricQuery{Namespace: "AWS/ElastiCache", MetricName: "CPUUtilization", Dimensions: dims},
		},
		{
			Name:       inventory.MetricConnections,
			Unit:       "count",
			Statistics: []inventory.Statistic{inventory.StatAverage, inventory.StatMaximum},
			Query:      inventory.MetricQuery{Namespace: "AWS/ElastiCache", MetricName: "CurrConnections", Dimensions: dims},
			NoDataNote: "connection metrics appear after the first client connects",
		},
	}
}
