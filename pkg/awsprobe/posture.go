package awsprobe

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/gaugeworks/cloudgauge/pkg/audit/findings"
)

type iamAPI interface {
	ListUsers(ctx context.Context, params *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error)
	ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error)
}

type cloudtrailAPI interface {
	DescribeTrails(ctx context.Context, params *cloudtrail.DescribeTrailsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.DescribeTrailsOutput, error)
	GetTrailStatus(ctx context.Context, params *cloudtrail.GetTrailStatusInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.GetTrailStatusOutput, error)
}

// PostureScanner gathers the account-level inputs for the security checks:
// credential ages from IAM and audit-trail status from CloudTrail. Both
// services are account-global, so one scan covers every region.
type PostureScanner struct {
	iam   iamAPI
	trail cloudtrailAPI
	log   *slog.Logger
	now   func() time.Time
}

// NewPostureScanner builds the scanner over the session's base region.
func NewPostureScanner(sess *Session, log *slog.Logger) *PostureScanner {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	cfg := sess.ConfigFor("")
	return &PostureScanner{
		iam:   iam.NewFromConfig(cfg),
		trail: cloudtrail.NewFromConfig(cfg),
		log:   log,
		now:   time.Now,
	}
}

// Collect never fails; each half records its own error so the checks it
// feeds can skip with a reason instead of guessing.
func (s *PostureScanner) Collect(ctx context.Context) *findings.Posture {
	posture := &findings.Posture{}

	ages, err := s.accessKeyAges(ctx)
	if err != nil {
		s.log.Warn("access key scan failed", "error", err)
		posture.AccessKeyErr = err
	} else {
		posture.AccessKeyAges = ages
	}

	active, err := s.auditTrailActive(ctx)
	if err != nil {
		s.log.Warn("audit trail scan failed", "error", err)
		posture.AuditTrailErr = err
	} else {
		posture.AuditTrailActive = active
	}

	return posture
}

// accessKeyAges returns the age of every active long-lived credential.
// Inactive keys are excluded; they cannot authenticate.
func (s *PostureScanner) accessKeyAges(ctx context.Context) ([]time.Duration, error) {
	now := s.now().UTC()
	var ages []time.Duration

	users := iam.NewListUsersPaginator(s.iam, &iam.ListUsersInput{})
	for users.HasMorePages() {
		page, err := users.NextPage(ctx)
		if err != nil {
			return nil, classify("ListUsers", err)
		}
		for _, user := range page.Users {
			keys, err := s.iam.ListAccessKeys(ctx, &iam.ListAccessKeysInput{UserName: user.UserName})
			if err != nil {
				return nil, classify("ListAccessKeys", err)
			}
			for _, key := range keys.AccessKeyMetadata {
				if key.Status != iamtypes.StatusTypeActive || key.CreateDate == nil {
					continue
				}
				ages = append(ages, now.Sub(*key.CreateDate))
			}
		}
	}
	return ages, nil
}

// auditTrailActive reports whether any trail is currently logging.
func (s *PostureScanner) auditTrailActive(ctx context.Context) (bool, error) {
	trails, err := s.trail.DescribeTrails(ctx, &cloudtrail.DescribeTrailsInput{})
	if err != nil {
		return false, classify("DescribeTrails", err)
	}
	for _, t := range trails.TrailList {
		name := aws.ToString(t.TrailARN)
		if name == "" {
			name = aws.ToString(t.Name)
		}
		status, err := s.trail.GetTrailStatus(ctx, &cloudtrail.GetTrailStatusInput{Name: aws.String(name)})
		if err != nil {
			s.log.Debug("trail status check failed", "trail", name, "error", err)
			continue
		}
		if aws.ToBool(status.IsLogging) {
			return true, nil
		}
	}
	return false, nil
}
