// Package faults defines the failure taxonomy shared by discovery, metric
// collection, and cost attribution, plus the bounded retry discipline for
// the retryable classes.
package faults

import (
	"errors"
	"fmt"
)

// Class categorizes a provider failure so callers can tell a missing
// permission from a region that needs opt-in from a blip worth retrying.
type Class string

const (
	// PermissionDenied means the caller lacks rights for the operation.
	PermissionDenied Class = "permission-denied"
	// RegionNotEnabled means the region requires account opt-in.
	RegionNotEnabled Class = "region-not-enabled"
	// NotFound means the resource vanished between list and describe.
	NotFound Class = "not-found"
	// Throttled means the provider rate-limited the call. Retryable.
	Throttled Class = "throttled"
	// Transient covers network and service-side errors. Retryable.
	Transient Class = "transient"
	// Unsupported means the feature is unavailable for this resource,
	// such as metrics that require an optional agent.
	Unsupported Class = "unsupported"
)

// Fault wraps a provider error with its class and the operation that failed.
type Fault struct {
	Class Class
	Op    string
	Err   error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Op, f.Class)
	}
	return fmt.Sprintf("%s: %s: %v", f.Op, f.Class, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// New builds a classified fault around err.
func New(class Class, op string, err error) *Fault {
	return &Fault{Class: class, Op: op, Err: err}
}

// Newf builds a classified fault with a formatted message and no cause.
func Newf(class Class, op, format string, args ...any) *Fault {
	return &Fault{Class: class, Op: op, Err: fmt.Errorf(format, args...)}
}

// ClassOf extracts the class from err. Errors that never passed through a
// probe's classifier map to Transient, so an unknown failure gets a bounded
// retry before it becomes a diagnostic.
func ClassOf(err error) Class {
	var f *Fault
	if errors.As(err, &f) {
		return f.Class
	}
	return Transient
}

// Retryable reports whether failures of this class are worth retrying.
func Retryable(class Class) bool {
	return class == Throttled || class == Transient
}
