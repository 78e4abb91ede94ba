package awsprobe

import (
	"context"
	"errors"
	"net/http"
	"strings"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"

	"github.com/gaugeworks/cloudgauge/pkg/audit/faults"
)

// classify maps an SDK error onto the fault taxonomy the engine keys its
// skip, retry, and diagnostic behavior on. Unknown shapes classify as
// transient so a rerun gets another chance.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return faults.New(faults.Transient, op, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return faults.New(classOfCode(apiErr.ErrorCode()), op, err)
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return faults.New(classOfStatus(respErr.HTTPStatusCode()), op, err)
	}

	return faults.New(faults.Transient, op, err)
}

func classOfCode(code string) faults.Class {
	switch code {
	case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation", "UnauthorizedAccess", "Forbidden":
		return faults.PermissionDenied
	case "Throttling", "ThrottlingException", "TooManyRequestsException",
		"RequestLimitExceeded", "RequestThrottled", "RequestThrottledException", "SlowDown":
		return faults.Throttled
	case "OptInRequired", "InvalidClientTokenId":
		return faults.RegionNotEnabled
	case "UnsupportedOperation", "InvalidAction":
		return faults.Unsupported
	}
	switch {
	case strings.Contains(code, "NotFound"), strings.Contains(code, "NoSuchEntity"), strings.Contains(code, "NoSuch"):
		return faults.NotFound
	case strings.Contains(code, "AccessDenied"):
		return faults.PermissionDenied
	}
	return faults.Transient
}

func classOfStatus(status int) faults.Class {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return faults.PermissionDenied
	case http.StatusNotFound:
		return faults.NotFound
	case http.StatusTooManyRequests:
		return faults.Throttled
	}
	return faults.Transient
}
