package upstream

import (
	"context"
	"fmt"
	"net/http"

	"github.com/teranos/legisync/errors"
)

// Class is the failure classification of one upstream request
type Class int

const (
	ClassOK        Class = iota // 2xx/3xx
	ClassNotFound               // 404, terminal
	ClassTransient              // 5xx, 429, timeouts, resets and other transport failures
	ClassClient                 // other 4xx or caller cancellation, terminal
)

func (c Class) String() string {
	switch c {
	case ClassOK:
		return "ok"
	case ClassNotFound:
		return "not_found"
	case ClassTransient:
		return "transient"
	case ClassClient:
		return "client"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Retryable reports whether requests failing with this class may be retried
func (c Class) Retryable() bool {
	return c == ClassTransient
}

// Classify maps an HTTP status or a transport error to a Class.
// A non-nil err takes precedence over status.
func Classify(status int, err error) Class {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ClassClient
		}
		// timeouts, connection resets, refused dials, EOF mid-body
		return ClassTransient
	}

	switch {
	case status == http.StatusNotFound:
		return ClassNotFound
	case status == http.StatusTooManyRequests, status >= 500:
		return ClassTransient
	case status >= 400:
		return ClassClient
	default:
		return ClassOK
	}
}

// StatusError is returned for non-2xx upstream responses
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// mark attaches the taxonomy sentinel matching class to err
func mark(err error, class Class) error {
	switch class {
	case ClassNotFound:
		return errors.Mark(err, errors.ErrNotFound)
	case ClassTransient:
		return errors.Mark(err, errors.ErrTransient)
	case ClassClient:
		return errors.Mark(err, errors.ErrClient)
	default:
		return err
	}
}
