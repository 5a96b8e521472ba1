// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package camera

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuthentication means the camera rejected every scheme tried.
	ErrAuthentication = errors.New("camera authentication failed")
	// ErrNetwork covers transport failures and unexpected HTTP statuses.
	ErrNetwork = errors.New("camera unreachable")
	// ErrEmptyResponse means the camera answered 2xx with no body.
	ErrEmptyResponse = errors.New("camera returned empty response")
)

// Error carries the context of a failed camera request. Endpoint is always
// stripped of credentials.
type Error struct {
	Kind      error
	Endpoint  string
	Status    int
	Challenge string
	Attempted []Scheme
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Endpoint != "" {
		fmt.Fprintf(&b, ": %s", e.Endpoint)
	}
	var details []string
	if e.Status != 0 {
		details = append(details, fmt.Sprintf("status %d", e.Status))
	}
	if len(e.Attempted) > 0 {
		names := make([]string, len(e.Attempted))
		for i, s := range e.Attempted {
			names[i] = s.String()
		}
		details = append(details, "tried "+strings.Join(names, ","))
	}
	if len(details) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(details, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// AttemptedSchemes returns the schemes tried before err, if err is a camera error.
func AttemptedSchemes(err error) []Scheme {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Attempted
	}
	return nil
}
