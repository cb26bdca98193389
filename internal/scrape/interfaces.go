package scrape

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Hasher computes digests recorded alongside retrieved artifacts.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewRunID() (uuid.UUID, error)
}
