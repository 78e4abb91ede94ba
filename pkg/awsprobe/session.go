// Package awsprobe implements the provider capabilities the audit engine
// injects: discovery probes for every supported resource type, the metric
// querier, the billing source, pricing refinement, and account posture
// checks, all backed by the AWS SDK. A mock provider mirrors the same
// surface so the pipeline runs without credentials.
package awsprobe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/gaugeworks/cloudgauge/pkg/version"
)

type stsAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Session holds the resolved SDK configuration and hands out regional
// copies. One session backs every probe, querier, and billing client of a
// run.
type Session struct {
	cfg aws.Config
	sts stsAPI
	log *slog.Logger

	mu       sync.Mutex
	regional map[string]aws.Config
}

// NewSession resolves credentials and the base region from the default
// provider chain. An AWS_ENDPOINT_URL environment override redirects every
// client, which is how the LocalStack suite runs against a container.
func NewSession(ctx context.Context, region, profile string, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	cfg.APIOptions = append(cfg.APIOptions, userAgentMiddleware, apiCallLogger(log))

	return &Session{
		cfg:      cfg,
		sts:      sts.NewFromConfig(cfg),
		log:      log,
		regional: make(map[string]aws.Config),
	}, nil
}

// userAgentMiddleware stamps outgoing requests so API activity is
// attributable in provider-side audit logs.
func userAgentMiddleware(stack *middleware.Stack) error {
	return stack.Build.Add(middleware.BuildMiddlewareFunc("UserAgentStamp", func(ctx context.Context, input middleware.BuildInput, next middleware.BuildHandler) (
		middleware.BuildOutput, middleware.Metadata, error,
	) {
		if req, ok := input.Request.(*smithyhttp.Request); ok {
			ua := req.Header.Get("User-Agent")
			stamp := fmt.Sprintf("cloudgauge/%s", version.Current)
			if ua == "" {
				ua = stamp
			} else {
				ua = fmt.Sprintf("%s %s", ua, stamp)
			}
			req.Header.Set("User-Agent", ua)
		}
		return next.HandleBuild(ctx, input)
	}), middleware.After)
}

// apiCallLogger surfaces every SDK operation at debug level.
func apiCallLogger(log *slog.Logger) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Initialize.Add(middleware.InitializeMiddlewareFunc("APICallLog", func(ctx context.Context, input middleware.InitializeInput, next middleware.InitializeHandler) (
			middleware.InitializeOutput, middleware.Metadata, error,
		) {
			log.Debug("aws api call",
				"service", middleware.GetServiceID(ctx),
				"operation", middleware.GetOperationName(ctx))
			return next.HandleInitialize(ctx, input)
		}), middleware.Before)
	}
}

// Region returns the session's base region.
func (s *Session) Region() string {
	return s.cfg.Region
}

// ConfigFor returns a configuration copy pinned to region. Copies are
// cached; an empty region returns the base configuration.
func (s *Session) ConfigFor(region string) aws.Config {
	if region == "" || region == s.cfg.Region {
		return s.cfg
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg, ok := s.regional[region]; ok {
		return cfg
	}
	cfg := s.cfg.Copy()
	cfg.Region = region
	s.regional[region] = cfg
	return cfg
}

// VerifyIdentity confirms the credentials work and returns the account ID.
func (s *Session) VerifyIdentity(ctx context.Context) (string, error) {
	out, err := s.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", classify("GetCallerIdentity", err)
	}
	return aws.ToString(out.Account), nil
}
