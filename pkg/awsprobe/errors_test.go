package awsprobe

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/smithy-go"

	"github.com/gaugeworks/cloudgauge/pkg/audit/faults"
)

func TestClassifyNil(t *testing.T) {
	if err := classify("DescribeInstances", nil); err != nil {
		t.Fatalf("Expected nil for nil input, got %v", err)
	}
}

func TestClassifyContextErrors(t *testing.T) {
	for _, base := range []error{context.Canceled, context.DeadlineExceeded} {
		err := classify("DescribeInstances", base)
		if faults.ClassOf(err) != faults.Transient {
			t.Errorf("Expected %v to classify as transient, got %v", base, faults.ClassOf(err))
		}
		if !errors.Is(err, base) {
			t.Errorf("Expected classified error to wrap %v", base)
		}
	}
}

func TestClassifyAPIErrorCodes(t *testing.T) {
	tests := []struct {
		code string
		want faults.Class
	}{
		{"UnauthorizedOperation", faults.PermissionDenied},
		{"AccessDeniedException", faults.PermissionDenied},
		{"Throttling", faults.Throttled},
		{"RequestLimitExceeded", faults.Throttled},
		{"SlowDown", faults.Throttled},
		{"OptInRequired", faults.RegionNotEnabled},
		{"UnsupportedOperation", faults.Unsupported},
		{"DBInstanceNotFound", faults.NotFound},
		{"NoSuchLifecycleConfiguration", faults.NotFound},
		{"InternalError", faults.Transient},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			base := &smithy.GenericAPIError{Code: tt.code, Message: "denied"}
			err := classify("DescribeInstances", base)
			if got := faults.ClassOf(err); got != tt.want {
				t.Errorf("Expected class %v for code %s, got %v", tt.want, tt.code, got)
			}
			var apiErr smithy.APIError
			if !errors.As(err, &apiErr) {
				t.Errorf("Expected classified error to wrap the API error")
			}
		})
	}
}

func TestClassifyUnknownErrorIsTransient(t *testing.T) {
	err := classify("DescribeInstances", errors.New("connection reset by peer"))
	if faults.ClassOf(err) != faults.Transient {
		t.Errorf("Expected unknown errors to classify as transient, got %v", faults.ClassOf(err))
	}
}

func TestClassOfStatus(t *testing.T) {
	tests := []struct {
		status int
		want   faults.Class
	}{
		{http.StatusUnauthorized, faults.PermissionDenied},
		{http.StatusForbidden, faults.PermissionDenied},
		{http.StatusNotFound, faults.NotFound},
		{http.StatusTooManyRequests, faults.Throttled},
		{http.StatusInternalServerError, faults.Transient},
		{http.StatusBadGateway, faults.Transient},
	}

	for _, tt := range tests {
		if got := classOfStatus(tt.status); got != tt.want {
			t.Errorf("Expected class %v for status %d, got %v", tt.want, tt.status, got)
		}
	}
}
