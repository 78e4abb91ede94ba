//go:build e2e

// Package e2e is the hermetic suite: it brings its own cloud. TestMain
// starts one LocalStack container and every test in the package shares
// that endpoint, either through the exported config or through the
// environment a spawned binary inherits. Requires Docker.
package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
)

const localstackImage = "localstack/localstack:3.0.2"

var (
	awsCfg      aws.Config
	endpointURL string
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := localstack.Run(ctx, localstackImage,
		testcontainers.WithEnv(map[string]string{
			// Only what the probes, querier, and posture scanner touch.
			// Cost Explorer is left out so the billing stage degrades the
			// way it would on an account without CE access.
			"SERVICES": "ec2,sts,iam,cloudtrail,cloudwatch,pricing",
		}),
	)
	if err != nil {
		fmt.Printf("Failed to start LocalStack: %v\n", err)
		os.Exit(1)
	}

	endpoint, err := container.PortEndpoint(ctx, "4566/tcp", "")
	if err != nil {
		fmt.Printf("Failed to resolve LocalStack endpoint: %v\n", err)
		container.Terminate(ctx)
		os.Exit(1)
	}
	endpointURL = "http://" + endpoint
	fmt.Printf("LocalStack mapped to %s\n", endpointURL)

	// The engine and any binary the tests spawn both resolve credentials
	// from the default chain, so the whole suite rides these variables.
	os.Setenv("AWS_ENDPOINT_URL", endpointURL)
	os.Setenv("AWS_ACCESS_KEY_ID", "test")
	os.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	os.Setenv("AWS_REGION", "us-east-1")

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     "test",
				SecretAccessKey: "test",
			}, nil
		})),
		config.WithBaseEndpoint(endpointURL),
	)
	if err != nil {
		fmt.Printf("Failed to load AWS config: %v\n", err)
		container.Terminate(ctx)
		os.Exit(1)
	}
	awsCfg = cfg

	code := m.Run()

	if err := container.Terminate(ctx); err != nil {
		fmt.Printf("Failed to terminate container: %v\n", err)
	}
	os.Exit(code)
}
