package shortener

import "context"

// Repository defines the persistence operations for Link entities
// against the authoritative store. Unlike the cache tier its errors
// are real failures and propagate to the caller.
type Repository interface {
	Create(ctx context.Context, link Link) (Link, error)
	GetBySlug(ctx context.Context, slug string) (Link, error)
	Update(ctx context.Context, slug, originalURL string) (Link, error)
	Delete(ctx context.Context, slug string) error

	// AddClicks atomically adds delta to the cumulative click count for
	// slug. Returns a NotFound error when no such record exists.
	AddClicks(ctx context.Context, slug string, delta int64) error
}
