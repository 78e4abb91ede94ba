package awsprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"

	"github.com/gaugeworks/cloudgauge/pkg/audit/cost"
)

type pricingAPI interface {
	GetProducts(ctx context.Context, params *pricing.GetProductsInput, optFns ...func(*pricing.Options)) (*pricing.GetProductsOutput, error)
}

type priceRecord struct {
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// PriceFeed refines the static rate catalog with on-demand prices from the
// pricing API. Lookups are cached on disk because prices move on the order
// of months and the API is slow.
type PriceFeed struct {
	log *slog.Logger
	api pricingAPI

	mu        sync.Mutex
	cache     map[string]priceRecord
	cachePath string
	ttl       time.Duration
	now       func() time.Time
}

// NewPriceFeed builds a pricing client over the session. The pricing API is
// global and served from us-east-1. An empty cacheDir uses the system temp
// directory.
func NewPriceFeed(sess *Session, log *slog.Logger, cacheDir string) *PriceFeed {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cacheDir == "" {
		cacheDir = os.TempDir()
	}
	os.MkdirAll(cacheDir, 0755)

	f := &PriceFeed{
		log:       log,
		api:       pricing.NewFromConfig(sess.ConfigFor("us-east-1")),
		cache:     make(map[string]priceRecord),
		cachePath: filepath.Join(cacheDir, "pricing.json"),
		ttl:       15 * 24 * time.Hour,
		now:       time.Now,
	}
	f.loadCache()
	return f
}

func (f *PriceFeed) loadCache() {
	data, err := os.ReadFile(f.cachePath)
	if err == nil {
		json.Unmarshal(data, &f.cache)
	}
}

func (f *PriceFeed) saveCache() {
	data, err := json.MarshalIndent(f.cache, "", "  ")
	if err == nil {
		os.WriteFile(f.cachePath, data, 0644)
	}
}

// RefineCompute fills in hourly rates for the compute classes the catalog
// has no exact entry for. Lookup failures keep the family fallback; an
// estimate beats an aborted run.
func (f *PriceFeed) RefineCompute(ctx context.Context, table *cost.RateTable, region string, classes []string) {
	for _, class := range table.MissingComputeClasses(classes) {
		rate, err := f.computeRate(ctx, region, class)
		if err != nil {
			f.log.Warn("pricing lookup failed, keeping fallback rate",
				"class", class, "region", region, "error", err)
			continue
		}
		table.SetComputeRate(class, rate)
		f.log.Debug("refined compute rate", "class", class, "region", region, "hourly", rate)
	}
}

func (f *PriceFeed) computeRate(ctx context.Context, region, class string) (float64, error) {
	cacheKey := fmt.Sprintf("compute-%s-%s", region, class)

	f.mu.Lock()
	record, ok := f.cache[cacheKey]
	f.mu.Unlock()
	if ok && f.now().Sub(time.Unix(record.Timestamp, 0)) < f.ttl {
		return record.Price, nil
	}

	rate, err := f.fetchComputeRate(ctx, region, class)
	if err != nil {
		return 0, err
	}

	f.mu.Lock()
	f.cache[cacheKey] = priceRecord{Price: rate, Timestamp: f.now().Unix()}
	f.saveCache()
	f.mu.Unlock()
	return rate, nil
}

func (f *PriceFeed) fetchComputeRate(ctx context.Context, region, class string) (float64, error) {
	input := &pricing.GetProductsInput{
		ServiceCode: aws.String("AmazonEC2"),
		Filters: []types.Filter{
			{Type: types.FilterTypeTermMatch, Field: aws.String("productFamily"), Value: aws.String("Compute Instance")},
			{Type: types.FilterTypeTermMatch, Field: aws.String("serviceCode"), Value: aws.String("AmazonEC2")},
			{Type: types.FilterTypeTermMatch, Field: aws.String("regionCode"), Value: aws.String(region)},
			{Type: types.FilterTypeTermMatch, Field: aws.String("instanceType"), Value: aws.String(class)},
			{Type: types.FilterTypeTermMatch, Field: aws.String("tenancy"), Value: aws.String("Shared")},
			{Type: types.FilterTypeTermMatch, Field: aws.String("operatingSystem"), Value: aws.String("Linux")},
			{Type: types.FilterTypeTermMatch, Field: aws.String("preInstalledSw"), Value: aws.String("NA")},
		},
		MaxResults: aws.Int32(1),
	}

	out, err := f.api.GetProducts(ctx, input)
	if err != nil {
		return 0, classify("GetProducts", err)
	}
	if len(out.PriceList) == 0 {
		return 0, fmt.Errorf("no on-demand price for %s in %s", class, region)
	}
	return parsePrice(out.PriceList[0])
}

// parsePrice walks the pricing document's OnDemand terms down to the USD
// price per unit.
func parsePrice(doc string) (float64, error) {
	type priceDimension struct {
		PricePerUnit map[string]string `json:"pricePerUnit"`
	}
	type term struct {
		PriceDimensions map[string]priceDimension `json:"priceDimensions"`
	}
	type product struct {
		Terms map[string]map[string]term `json:"terms"`
	}

	var p product
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return 0, fmt.Errorf("parse pricing document: %w", err)
	}

	for _, t := range p.Terms["OnDemand"] {
		for _, dim := range t.PriceDimensions {
			if usd, ok := dim.PricePerUnit["USD"]; ok {
				if v, err := strconv.ParseFloat(usd, 64); err == nil {
					return v, nil
				}
			}
		}
	}
	return 0, fmt.Errorf("no USD price in pricing document")
}
