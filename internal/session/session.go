// Package session gates the recording cycle on a backend-issued session
// identifier. Registration must complete before any capture starts; on
// failure the caller must not start capture.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRegistrationFailed indicates the backend did not issue a session
// identifier. Fatal to starting a recording session.
var ErrRegistrationFailed = errors.New("session registration failed")

// Registrar registers a conversation with the backend and returns its
// session identifier. *backend.Client implements this.
type Registrar interface {
	Register(ctx context.Context) (string, error)
}

// Session is one registered recording session. Exactly one session is
// active at a time; beginning a new one supersedes tracking of the
// previous (the backend has no close call).
type Session struct {
	ID        string
	StartedAt time.Time
}

// Begin registers a new session and returns it. Any registration failure,
// including an empty identifier in an otherwise successful response, is
// reported as ErrRegistrationFailed.
func Begin(ctx context.Context, r Registrar, now func() time.Time) (Session, error) {
	if now == nil {
		now = time.Now
	}

	id, err := r.Register(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}
	if id == "" {
		return Session{}, fmt.Errorf("%w: backend returned an empty session id", ErrRegistrationFailed)
	}

	return Session{ID: id, StartedAt: now()}, nil
}
