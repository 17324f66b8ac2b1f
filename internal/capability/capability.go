// Package capability models optional external tools (OCR engines, page
// renderer, embedding model) whose presence is decided once at startup.
//
// An Of[T] is either Available, carrying the resolved implementation, or
// Unavailable, carrying the reason. Components receive resolved values and
// never probe the environment themselves.
package capability

import "fmt"

// Status is the variant tag.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
)

// Of holds one resolved capability.
type Of[T any] struct {
	value  T
	ok     bool
	detail string
}

// Available wraps a usable implementation. detail is free text for
// diagnostics, such as a binary path or version.
func Available[T any](value T, detail string) Of[T] {
	return Of[T]{value: value, ok: true, detail: detail}
}

// Unavailable records why a capability cannot be used.
func Unavailable[T any](reason string) Of[T] {
	return Of[T]{detail: reason}
}

// Unavailablef is Unavailable with formatting.
func Unavailablef[T any](format string, args ...any) Of[T] {
	return Unavailable[T](fmt.Sprintf(format, args...))
}

// Get returns the implementation and whether it is available.
func (c Of[T]) Get() (T, bool) {
	return c.value, c.ok
}

// OrZero returns the implementation, or T's zero value when unavailable.
func (c Of[T]) OrZero() T {
	return c.value
}

// IsAvailable reports the variant.
func (c Of[T]) IsAvailable() bool {
	return c.ok
}

// Status returns the variant tag.
func (c Of[T]) Status() Status {
	if c.ok {
		return StatusAvailable
	}
	return StatusUnavailable
}

// Detail returns the diagnostic detail of an available capability.
func (c Of[T]) Detail() string {
	if c.ok {
		return c.detail
	}
	return ""
}

// Reason returns why the capability is unavailable, or "" when it is available.
func (c Of[T]) Reason() string {
	if c.ok {
		return ""
	}
	return c.detail
}

// Report is a serializable view of one capability.
type Report struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Describe builds a Report for c.
func Describe[T any](name string, c Of[T]) Report {
	return Report{Name: name, Status: c.Status(), Detail: c.Detail(), Reason: c.Reason()}
}
