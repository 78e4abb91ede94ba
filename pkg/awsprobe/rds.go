package awsprobe

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

type rdsAPI interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

func (p *Probes) discoverDatabases(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	paginator := rds.NewDescribeDBInstancesPaginator(p.clients(region).rds, &rds.DescribeDBInstancesInput{})

	var out []inventory.ResourceRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("DescribeDBInstances", err)
		}
		for _, db := range page.DBInstances {
			id := aws.ToString(db.DBInstanceIdentifier)
			rec := inventory.ResourceRecord{
				ID:    id,
				Name:  id,
				State: aws.ToString(db.DBInstanceStatus),
				Tags:  make(map[string]string, len(db.TagList)),
				Attributes: map[string]any{
					inventory.AttrInstanceClass:      aws.ToString(db.DBInstanceClass),
					inventory.AttrEngine:             aws.ToString(db.Engine),
					inventory.AttrSizeGB:             int(aws.ToInt32(db.AllocatedStorage)),
					inventory.AttrStorageClass:       aws.ToString(db.StorageType),
					inventory.AttrEncrypted:          aws.ToBool(db.StorageEncrypted),
					inventory.AttrPubliclyAccessible: aws.ToBool(db.PubliclyAccessible),
					"MultiAZ":                        aws.ToBool(db.MultiAZ),
				},
			}
			for _, t := range db.TagList {
				rec.Tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
			}
			if db.InstanceCreateTime != nil {
				rec.Attributes[inventory.AttrCreatedAt] = *db.InstanceCreateTime
			}
			if f.Match(rec) {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func databaseMetricDefs(rec inventory.ResourceRecord) []inventory.MetricDefinition {
	dims := map[string]string{"DBInstanceIdentifier": rec.ID}
	return []inventory.MetricDefinition{
		{
			Name:       inventory.MetricCPU,
			Unit:       "percent",
			Statistics: []inventory.Statistic{inventory.StatAverage, inventory.StatMaximum},
			Query:      inventory.MetricQuery{Namespace: "AWS/RDS", MetricName: "CPUUtilization", Dimensions: dims},
			NoDataNote: "stopped databases report no CPU datapoints",
		},
		{
			Name:       inventory.MetricConnections,
			Unit:       "count",
			Statistics: []inventory.Statistic{inventory.StatAverage, inventory.StatMaximum},
			Query:      inventory.MetricQuery{Namespace: "AWS/RDS", MetricName: "DatabaseConnections", Dimensions: dims},
			NoDataNote: "connection metrics appear after the first client connects",
		},
		{
			Name:       inventory.MetricFreeableMemory,
			Unit:       "bytes",
			Statistics: []inventory.Statistic{inventory.StatAverage},
			Query:      inventory.MetricQuery{Namespace: "AWS/RDS", MetricName: "FreeableMemory", Dimensions: dims},
		},
	}
}
