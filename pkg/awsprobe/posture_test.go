package awsprobe

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	cttypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

type fakeIAM struct {
	users    []iamtypes.User
	keys     map[string][]iamtypes.AccessKeyMetadata
	usersErr error
}

func (f *fakeIAM) ListUsers(ctx context.Context, params *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error) {
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return &iam.ListUsersOutput{Users: f.users}, nil
}

func (f *fakeIAM) ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error) {
	return &iam.ListAccessKeysOutput{
		AccessKeyMetadata: f.keys[aws.ToString(params.UserName)],
	}, nil
}

type fakeCloudTrail struct {
	trails    []cttypes.Trail
	logging   map[string]bool
	statusErr error
}

func (f *fakeCloudTrail) DescribeTrails(ctx context.Context, params *cloudtrail.DescribeTrailsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.DescribeTrailsOutput, error) {
	return &cloudtrail.DescribeTrailsOutput{TrailList: f.trails}, nil
}

func (f *fakeCloudTrail) GetTrailStatus(ctx context.Context, params *cloudtrail.GetTrailStatusInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.GetTrailStatusOutput, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &cloudtrail.GetTrailStatusOutput{
		IsLogging: aws.Bool(f.logging[aws.ToString(params.Name)]),
	}, nil
}

func postureScannerOver(iamAPI *fakeIAM, trailAPI *fakeCloudTrail, now time.Time) *PostureScanner {
	return &PostureScanner{
		iam:   iamAPI,
		trail: trailAPI,
		log:   slog.New(slog.DiscardHandler),
		now:   func() time.Time { return now },
	}
}

func TestPostureCollect(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	iamFake := &fakeIAM{
		users: []iamtypes.User{
			{UserName: aws.String("alice")},
			{UserName: aws.String("bob")},
		},
		keys: map[string][]iamtypes.AccessKeyMetadata{
			"alice": {
				{Status: iamtypes.StatusTypeActive, CreateDate: aws.Time(now.Add(-100 * 24 * time.Hour))},
				{Status: iamtypes.StatusTypeInactive, CreateDate: aws.Time(now.Add(-400 * 24 * time.Hour))},
			},
		},
	}
	trailFake := &fakeCloudTrail{
		trails: []cttypes.Trail{
			{TrailARN: aws.String("arn:aws:cloudtrail:us-east-1:1:trail/main"), Name: aws.String("main")},
		},
		logging: map[string]bool{"arn:aws:cloudtrail:us-east-1:1:trail/main": true},
	}

	posture := postureScannerOver(iamFake, trailFake, now).Collect(context.Background())

	if posture.AccessKeyErr != nil || posture.AuditTrailErr != nil {
		t.Fatalf("Expected no scan errors, got %v / %v", posture.AccessKeyErr, posture.AuditTrailErr)
	}
	if len(posture.AccessKeyAges) != 1 {
		t.Fatalf("Expected inactive keys excluded, got ages %v", posture.AccessKeyAges)
	}
	if posture.AccessKeyAges[0] != 100*24*time.Hour {
		t.Errorf("Expected age 100 days, got %v", posture.AccessKeyAges[0])
	}
	if !posture.AuditTrailActive {
		t.Error("Expected the logging trail detected")
	}
}

func TestPostureAccessKeyScanFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	iamFake := &fakeIAM{usersErr: errors.New("access denied")}
	trailFake := &fakeCloudTrail{
		trails:  []cttypes.Trail{{Name: aws.String("main")}},
		logging: map[string]bool{"main": true},
	}

	posture := postureScannerOver(iamFake, trailFake, now).Collect(context.Background())

	if posture.AccessKeyErr == nil {
		t.Error("Expected the IAM failure recorded")
	}
	if len(posture.AccessKeyAges) != 0 {
		t.Errorf("Expected no ages on failure, got %v", posture.AccessKeyAges)
	}
	if !posture.AuditTrailActive || posture.AuditTrailErr != nil {
		t.Error("Expected the trail half to collect independently")
	}
}

func TestPostureNoActiveTrail(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	trailFake := &fakeCloudTrail{
		trails: []cttypes.Trail{
			{Name: aws.String("paused")},
			{Name: aws.String("stopped")},
		},
		logging: map[string]bool{},
	}

	posture := postureScannerOver(&fakeIAM{}, trailFake, now).Collect(context.Background())

	if posture.AuditTrailActive {
		t.Error("Expected no active trail")
	}
	if posture.AuditTrailErr != nil {
		t.Errorf("Expected a clean false, got error %v", posture.AuditTrailErr)
	}
}

func TestPostureTrailStatusErrorsSkipped(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	trailFake := &fakeCloudTrail{
		trails:    []cttypes.Trail{{Name: aws.String("main")}},
		statusErr: errors.New("access denied"),
	}

	posture := postureScannerOver(&fakeIAM{}, trailFake, now).Collect(context.Background())

	if posture.AuditTrailActive {
		t.Error("Expected unreadable trail status to count as inactive")
	}
}
