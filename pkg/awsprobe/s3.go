package awsprobe

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/gaugeworks/cloudgauge/pkg/audit/faults"
	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

type s3API interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	GetBucketTagging(ctx context.Context, params *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error)
	GetBucketLifecycleConfiguration(ctx context.Context, params *s3.GetBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLifecycleConfigurationOutput, error)
	GetPublicAccessBlock(ctx context.Context, params *s3.GetPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error)
	GetBucketPolicyStatus(ctx context.Context, params *s3.GetBucketPolicyStatusInput, optFns ...func(*s3.Options)) (*s3.GetBucketPolicyStatusOutput, error)
}

// discoverBuckets lists the account's buckets and keeps the ones homed in
// this region. The listing is global, so every region sees every bucket and
// the location lookup decides ownership; a bucket is discovered exactly
// once across a multi-region run.
func (p *Probes) discoverBuckets(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	api := p.clients(region).s3

	list, err := api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, classify("ListBuckets", err)
	}

	var out []inventory.ResourceRecord
	for _, bucket := range list.Buckets {
		name := aws.ToString(bucket.Name)
		loc, err := api.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: bucket.Name})
		if err != nil {
			p.log.Debug("bucket location unavailable", "bucket", name, "error", err)
			continue
		}
		if bucketRegion(loc.LocationConstraint) != region {
			continue
		}

		rec := inventory.ResourceRecord{
			ID:         name,
			Name:       name,
			State:      "active",
			Tags:       bucketTags(ctx, api, name),
			Attributes: map[string]any{},
		}
		if bucket.CreationDate != nil {
			rec.Attributes[inventory.AttrCreatedAt] = *bucket.CreationDate
		}
		if !f.Match(rec) {
			continue
		}
		p.enrichBucket(ctx, api, region, &rec)
		out = append(out, rec)
	}
	return out, nil
}

// bucketRegion maps the legacy location constraint values onto region
// names. us-east-1 reports an empty constraint and very old buckets report
// "EU".
func bucketRegion(lc types.BucketLocationConstraint) string {
	switch lc {
	case "":
		return "us-east-1"
	case "EU":
		return "eu-west-1"
	default:
		return string(lc)
	}
}

func bucketTags(ctx context.Context, api s3API, name string) map[string]string {
	out, err := api.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(name)})
	if err != nil {
		return nil
	}
	tags := make(map[string]string, len(out.TagSet))
	for _, t := range out.TagSet {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}

// enrichBucket fills in lifecycle, exposure, and size. Every call fails
// open: an attribute we cannot determine stays absent rather than guessed.
func (p *Probes) enrichBucket(ctx context.Context, api s3API, region string, rec *inventory.ResourceRecord) {
	bucket := aws.String(rec.ID)

	lc, err := api.GetBucketLifecycleConfiguration(ctx, &s3.GetBucketLifecycleConfigurationInput{Bucket: bucket})
	switch {
	case err == nil:
		rec.Attributes[inventory.AttrLifecyclePolicy] = len(lc.Rules) > 0
	case faults.ClassOf(classify("GetBucketLifecycleConfiguration", err)) == faults.NotFound:
		rec.Attributes[inventory.AttrLifecyclePolicy] = false
	}

	if public, ok := bucketPublic(ctx, api, bucket); ok {
		rec.Attributes[inventory.AttrPublic] = public
	}

	if bytes, ok := p.bucketSize(ctx, region, rec.ID); ok {
		rec.Attributes[inventory.AttrStoredBytes] = bytes
	}
}

// bucketPublic determines whether the bucket is publicly reachable. A
// public access block that blocks and restricts policies settles it;
// otherwise the policy status decides, with "no policy" meaning private.
func bucketPublic(ctx context.Context, api s3API, bucket *string) (public, ok bool) {
	if pab, err := api.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{Bucket: bucket}); err == nil {
		cfg := pab.PublicAccessBlockConfiguration
		if cfg != nil && aws.ToBool(cfg.BlockPublicPolicy) && aws.ToBool(cfg.RestrictPublicBuckets) {
			return false, true
		}
	}

	status, err := api.GetBucketPolicyStatus(ctx, &s3.GetBucketPolicyStatusInput{Bucket: bucket})
	if err != nil {
		if faults.ClassOf(classify("GetBucketPolicyStatus", err)) == faults.NotFound {
			return false, true
		}
		return false, false
	}
	return status.PolicyStatus != nil && aws.ToBool(status.PolicyStatus.IsPublic), true
}

// bucketSize reads the newest daily BucketSizeBytes datapoint. S3 exposes
// no size API; the storage metric is the only way to weigh a bucket
// without listing every object.
func (p *Probes) bucketSize(ctx context.Context, region, bucket string) (float64, bool) {
	end := time.Now().UTC()
	points, err := p.querier.Query(ctx, region, inventory.MetricQuery{
		Namespace:  "AWS/S3",
		MetricName: "BucketSizeBytes",
		Dimensions: map[string]string{"BucketName": bucket, "StorageType": "StandardStorage"},
	}, 24*time.Hour, end.Add(-48*time.Hour), end)
	if err != nil || len(points) == 0 {
		return 0, false
	}

	latest := points[0]
	for _, pt := range points[1:] {
		if pt.Timestamp.After(latest.Timestamp) {
			latest = pt
		}
	}
	return latest.Average, true
}

func bucketMetricDefs(rec inventory.ResourceRecord) []inventory.MetricDefinition {
	return []inventory.MetricDefinition{
		{
			Name:       inventory.MetricStorageBytes,
			Unit:       "bytes",
			Statistics: []inventory.Statistic{inventory.StatCurrent},
			Query: inventory.MetricQuery{
				Namespace:  "AWS/S3",
				MetricName: "BucketSizeBytes",
				Dimensions: map[string]string{"BucketName": rec.ID, "StorageType": "StandardStorage"},
			},
			Period:     24 * time.Hour,
			NoDataNote: "storage metrics refresh on a daily cycle; new buckets report nothing for a day",
		},
		{
			Name:       inventory.MetricObjectCount,
			Unit:       "count",
			Statistics: []inventory.Statistic{inventory.StatCurrent},
			Query: inventory.MetricQuery{
				Namespace:  "AWS/S3",
				MetricName: "NumberOfObjects",
				Dimensions: map[string]string{"BucketName": rec.ID, "StorageType": "AllStorageTypes"},
			},
			Period:     24 * time.Hour,
			NoDataNote: "storage metrics refresh on a daily cycle; new buckets report nothing for a day",
		},
		{
			Name:       inventory.MetricReadOps,
			Unit:       "count",
			Statistics: []inventory.Statistic{inventory.StatTotal},
			Query: inventory.MetricQuery{
				Namespace:  "AWS/S3",
				MetricName: "GetRequests",
				Dimensions: map[string]string{"BucketName": rec.ID, "FilterId": "EntireBucket"},
			},
			NoDataNote: "request metrics require a bucket metrics configuration",
		},
	}
}
