package collector

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrEmptyCode is returned when a request carries no indicator code.
	ErrEmptyCode = errors.New("indicator code is required")
	// ErrInvalidDate is returned when a range bound is not YYYY-MM or YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
	// ErrMalformedPayload is returned when an upstream body cannot be turned into a series.
	ErrMalformedPayload = errors.New("malformed upstream payload")
	// ErrNotApplicable is returned by strategies that do not apply to a request.
	ErrNotApplicable = errors.New("strategy not applicable")
)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Rejected reports the 403/500 responses upstream returns for bounded
// queries it refuses but would serve without dates.
func (e *StatusError) Rejected() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusInternalServerError
}

// Retryable reports whether repeating the same request may succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

// Failure is one recorded strategy failure.
type Failure struct {
	Strategy string
	Err      error
}

func (f Failure) Error() string { return f.Strategy + ": " + f.Err.Error() }

func (f Failure) Unwrap() error { return f.Err }

// Trail accumulates the failures of one fetch call, in order.
type Trail struct {
	failures []Failure
}

// Add records a failure for the named strategy.
func (t *Trail) Add(strategy string, err error) {
	t.failures = append(t.failures, Failure{Strategy: strategy, Err: err})
}

// Failures returns a copy of the recorded failures.
func (t *Trail) Failures() []Failure {
	out := make([]Failure, len(t.failures))
	copy(out, t.failures)
	return out
}

// Rejected reports whether any recorded failure was an upstream rejection.
func (t *Trail) Rejected() bool {
	for _, f := range t.failures {
		var se *StatusError
		if errors.As(f.Err, &se) && se.Rejected() {
			return true
		}
	}
	return false
}

// ExhaustedError is returned when every live strategy and the cache failed.
type ExhaustedError struct {
	Code     string
	Failures []Failure
}

func (e *ExhaustedError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("no data for indicator %s: %s", e.Code, strings.Join(msgs, " | "))
}

// Unwrap exposes every underlying cause to errors.Is / errors.As.
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Messages returns one "strategy: cause" line per failure.
func (e *ExhaustedError) Messages() []string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return msgs
}
