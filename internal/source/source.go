package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/twhuang/notidrawer/internal/model"
)

// AuthError indicates that authentication has failed or expired for a source.
// It is returned by source clients when the server rejects credentials.
type AuthError struct {
	SourceType SourceType
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.SourceType, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// SourceType identifies the kind of external notification source.
type SourceType string

const (
	SourceTypeEmail SourceType = "email"
)

// FetchOptions bounds a single fetch from a source.
type FetchOptions struct {
	// Limit caps how many events a fetch may return. Zero means the
	// source's own default.
	Limit int

	// Since restricts the fetch to items newer than this Unix
	// millisecond timestamp. Zero means the source's own lookback.
	Since int64
}

// Source defines the contract every notification source must implement.
type Source interface {
	// Type returns the source type identifier.
	Type() SourceType

	// ValidateConnection verifies credentials and connectivity.
	// Returns a human-readable status message on success.
	ValidateConnection(ctx context.Context) (string, error)

	// FetchEvents retrieves recent notification events from the source.
	FetchEvents(ctx context.Context, opts FetchOptions) ([]model.NotificationEvent, error)
}
