package shortener

import (
	"time"

	"github.com/google/uuid"
)

// Link is a short-code to URL mapping. ClickCount is the cumulative,
// authoritative count; pending clicks live in the counter store until
// the aggregator folds them in.
type Link struct {
	ID          uuid.UUID `json:"id"`
	OriginalURL string    `json:"original_url"`
	Slug        string    `json:"slug"`
	ClickCount  int64     `json:"click_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
