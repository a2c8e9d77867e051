package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned for a 401 reply. The caller must sign the
// local session out.
var ErrUnauthorized = errors.New("session expired")

// ErrNoCredential is returned when a request is attempted while signed out.
var ErrNoCredential = errors.New("not signed in")

// ErrUnsupportedImage is returned before uploading an avatar whose file
// extension the server would reject.
var ErrUnsupportedImage = errors.New("unsupported avatar image type")

// RemoteError is a non-success reply from the CV server.
type RemoteError struct {
	Op      string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: server returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
}
