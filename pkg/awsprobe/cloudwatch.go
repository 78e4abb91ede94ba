package awsprobe

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
	"github.com/gaugeworks/cloudgauge/pkg/audit/metrics"
)

type cloudWatchAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// Metrics implements metrics.Querier over CloudWatch. Clients are cached
// per region because one collection run fans out across every region in
// scope.
type Metrics struct {
	sess *Session

	mu      sync.Mutex
	clients map[string]cloudWatchAPI
	newAPI  func(aws.Config) cloudWatchAPI
}

// NewMetrics builds the CloudWatch-backed querier.
func NewMetrics(sess *Session) *Metrics {
	return &Metrics{
		sess:    sess,
		clients: make(map[string]cloudWatchAPI),
		newAPI: func(cfg aws.Config) cloudWatchAPI {
			return cloudwatch.NewFromConfig(cfg)
		},
	}
}

func (m *Metrics) client(region string) cloudWatchAPI {
	m.mu.Lock()
	defer m.mu.Unlock()
	if api, ok := m.clients[region]; ok {
		return api
	}
	api := m.newAPI(m.sess.ConfigFor(region))
	m.clients[region] = api
	return api
}

// Query fetches period-aggregated statistics for one provider-side series.
// All four aggregations come back in one call; the collector picks the ones
// each definition asked for.
func (m *Metrics) Query(ctx context.Context, region string, q inventory.MetricQuery, period time.Duration, start, end time.Time) ([]metrics.Datapoint, error) {
	out, err := m.client(region).GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(q.Namespace),
		MetricName: aws.String(q.MetricName),
		Dimensions: buildDimensions(q.Dimensions),
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(clampPeriod(period)),
		Statistics: []types.Statistic{
			types.StatisticAverage,
			types.StatisticMaximum,
			types.StatisticSum,
			types.StatisticSampleCount,
		},
	})
	if err != nil {
		return nil, classify("GetMetricStatistics", err)
	}

	points := make([]metrics.Datapoint, 0, len(out.Datapoints))
	for _, dp := range out.Datapoints {
		points = append(points, metrics.Datapoint{
			Timestamp:   aws.ToTime(dp.Timestamp),
			Average:     aws.ToFloat64(dp.Average),
			Maximum:     aws.ToFloat64(dp.Maximum),
			Sum:         aws.ToFloat64(dp.Sum),
			SampleCount: aws.ToFloat64(dp.SampleCount),
		})
	}
	return points, nil
}

// buildDimensions turns the query's dimension map into SDK form, sorted by
// name so requests are deterministic.
func buildDimensions(dims map[string]string) []types.Dimension {
	if len(dims) == 0 {
		return nil
	}
	names := make([]string, 0, len(dims))
	for name := range dims {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]types.Dimension, 0, len(names))
	for _, name := range names {
		out = append(out, types.Dimension{
			Name:  aws.String(name),
			Value: aws.String(dims[name]),
		})
	}
	return out
}

// clampPeriod rounds the period to the 60-second granularity CloudWatch
// accepts.
func clampPeriod(period time.Duration) int32 {
	secs := int64(period / time.Second)
	if secs < 60 {
		return 60
	}
	if rem := secs % 60; rem != 0 {
		secs += 60 - rem
	}
	return int32(secs)
}
