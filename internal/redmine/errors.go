package redmine

import "errors"

var (
	// ErrUpstream marks transport failures and non-success responses.
	ErrUpstream = errors.New("redmine request failed")

	// ErrDecode indicates a response body that does not match the expected shape.
	ErrDecode = errors.New("redmine response malformed")

	// ErrShortPage indicates the backend stopped returning entries before
	// the advertised total_count was reached.
	ErrShortPage = errors.New("redmine returned an empty page before total_count")
)
