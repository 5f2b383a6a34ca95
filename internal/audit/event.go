// Package audit records one structured entry per HTTP exchange, redirect
// and retry, independent of the diagnostic logger.
package audit

import (
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	// EventRequestComplete is logged when an exchange yields a response of any status
	EventRequestComplete EventType = "request_complete"
	// EventRequestFailed is logged when an exchange fails before a response arrives
	EventRequestFailed EventType = "request_failed"
	// EventRedirectFollowed is logged for each redirect hop taken
	EventRedirectFollowed EventType = "redirect_followed"
	// EventRetryScheduled is logged when a transient failure is about to be retried
	EventRetryScheduled EventType = "retry_scheduled"
	// EventHostBlocked is logged when a request is refused by the private host guard
	EventHostBlocked EventType = "host_blocked"
)

// Event represents a single audit log entry
type Event struct {
	// Timestamp when the event occurred (RFC3339 format in JSON)
	Timestamp time.Time `json:"timestamp"`

	EventType EventType `json:"event_type"`

	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`

	// URL is always sanitized before it gets here
	URL string `json:"url,omitempty"`

	// Location is the redirect target for redirect events
	Location string `json:"location,omitempty"`

	Status     int   `json:"status,omitempty"`
	Bytes      int   `json:"bytes,omitempty"`
	DurationMs int64 `json:"duration_ms,omitempty"`

	// Attempt is the 1-based retry number for retry events
	Attempt int   `json:"attempt,omitempty"`
	DelayMs int64 `json:"delay_ms,omitempty"`

	// ErrorKind is the transient error classification, e.g. "read_timeout"
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewRequestCompleteEvent creates an event for an exchange that produced a response
func NewRequestCompleteEvent(requestID, method, url string, status, bytes int, duration time.Duration) Event {
	return Event{
		Timestamp:  time.Now(),
		EventType:  EventRequestComplete,
		RequestID:  requestID,
		Method:     method,
		URL:        url,
		Status:     status,
		Bytes:      bytes,
		DurationMs: duration.Milliseconds(),
	}
}

// NewRequestFailedEvent creates an event for an exchange that returned an error
func NewRequestFailedEvent(requestID, method, url, kind, err string, duration time.Duration) Event {
	return Event{
		Timestamp:  time.Now(),
		EventType:  EventRequestFailed,
		RequestID:  requestID,
		Method:     method,
		URL:        url,
		ErrorKind:  kind,
		Error:      truncateError(err),
		DurationMs: duration.Milliseconds(),
	}
}

// NewRedirectFollowedEvent creates an event for one redirect hop
func NewRedirectFollowedEvent(requestID, from, to string, status int) Event {
	return Event{
		Timestamp: time.Now(),
		EventType: EventRedirectFollowed,
		RequestID: requestID,
		URL:       from,
		Location:  to,
		Status:    status,
	}
}

// NewRetryScheduledEvent creates an event for a retry about to sleep
func NewRetryScheduledEvent(requestID string, attempt int, delay time.Duration, kind, err string) Event {
	return Event{
		Timestamp: time.Now(),
		EventType: EventRetryScheduled,
		RequestID: requestID,
		Attempt:   attempt,
		DelayMs:   delay.Milliseconds(),
		ErrorKind: kind,
		Error:     truncateError(err),
	}
}

// NewHostBlockedEvent creates an event for a refused private-network target
func NewHostBlockedEvent(requestID, method, url string) Event {
	return Event{
		Timestamp: time.Now(),
		EventType: EventHostBlocked,
		RequestID: requestID,
		Method:    method,
		URL:       url,
	}
}

const maxErrorLen = 256

// truncateError caps error text so one bad response cannot bloat the log
func truncateError(err string) string {
	if len(err) > maxErrorLen {
		return err[:maxErrorLen] + "..."
	}
	return err
}
