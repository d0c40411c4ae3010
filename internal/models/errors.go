package models

import "fmt"

// NotFoundError reports an unknown stop or route ID. It is surfaced to
// the caller and never retried.
type NotFoundError struct {
	Kind string // "stop" or "route"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ValidationError reports a bad query parameter. It is raised before
// any reconciliation work happens.
type ValidationError struct {
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

// LoadError reports a structurally invalid static dataset. The refresh
// that produced it is rejected and the previous snapshot stays in place.
type LoadError struct {
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dataset load failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("dataset load failed: %s", e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

// FeedFetchError reports a failed realtime poll. The previous realtime
// map is kept unchanged when it occurs.
type FeedFetchError struct {
	URL string
	Err error
}

func (e *FeedFetchError) Error() string {
	return fmt.Sprintf("realtime feed fetch from %s failed: %v", e.URL, e.Err)
}

func (e *FeedFetchError) Unwrap() error { return e.Err }
