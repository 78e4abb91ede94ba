package awsprobe

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/gaugeworks/cloudgauge/pkg/audit/faults"
)

type fakeSTS struct {
	account string
	err     error
}

func (f *fakeSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String(f.account)}, nil
}

func TestVerifyIdentity(t *testing.T) {
	s := &Session{sts: &fakeSTS{account: "123456789012"}}

	account, err := s.VerifyIdentity(context.Background())
	if err != nil {
		t.Fatalf("VerifyIdentity failed: %v", err)
	}
	if account != "123456789012" {
		t.Errorf("Expected account 123456789012, got %s", account)
	}
}

func TestVerifyIdentityClassifiesFailure(t *testing.T) {
	s := &Session{sts: &fakeSTS{err: &smithy.GenericAPIError{Code: "AccessDenied"}}}

	_, err := s.VerifyIdentity(context.Background())
	if err == nil {
		t.Fatal("Expected an error")
	}
	if faults.ClassOf(err) != faults.PermissionDenied {
		t.Errorf("Expected permission-denied, got %v", faults.ClassOf(err))
	}
}

func TestConfigFor(t *testing.T) {
	s := &Session{
		cfg:      aws.Config{Region: "us-east-1"},
		regional: make(map[string]aws.Config),
	}

	if got := s.ConfigFor("").Region; got != "us-east-1" {
		t.Errorf("Expected the base region for empty input, got %s", got)
	}
	if got := s.ConfigFor("us-east-1").Region; got != "us-east-1" {
		t.Errorf("Expected the base config for the base region, got %s", got)
	}

	pinned := s.ConfigFor("eu-west-1")
	if pinned.Region != "eu-west-1" {
		t.Errorf("Expected a copy pinned to eu-west-1, got %s", pinned.Region)
	}
	if s.cfg.Region != "us-east-1" {
		t.Error("Expected the base config untouched")
	}
	if again := s.ConfigFor("eu-west-1"); again.Region != "eu-west-1" {
		t.Errorf("Expected the cached copy, got %s", again.Region)
	}
}
