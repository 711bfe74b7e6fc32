package shortener

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/shortlink/internal/errx"
	"github.com/sundayezeilo/shortlink/internal/idgen"
)

// dbtx is the subset of pgxpool.Pool the repository uses, abstracted
// for testing.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repo struct {
	db  dbtx
	ids idgen.Generator
}

// RepositoryConfig holds configuration for the repository.
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewRepository creates a Postgres-backed Repository.
func NewRepository(db dbtx, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}

	// Default: UUID v7 (good for DB locality). Retry once by default inside idgen.NewV7.
	if config.IDGenerator == nil {
		config.IDGenerator = idgen.NewV7(idgen.WithRetries(1))
	}

	return &repo{
		db:  db,
		ids: config.IDGenerator,
	}
}

const linkColumns = "id, original_url, slug, click_count, created_at, updated_at"

func scanLink(row pgx.Row) (Link, error) {
	var link Link
	err := row.Scan(
		&link.ID,
		&link.OriginalURL,
		&link.Slug,
		&link.ClickCount,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	return link, err
}

func isSlugUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == "links_slug_key"
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case isSlugUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func (r *repo) Create(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.repo.Create"

	if link.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ID = id
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO links (id, original_url, slug)
		 VALUES ($1, $2, $3)
		 RETURNING `+linkColumns,
		link.ID, link.OriginalURL, link.Slug,
	)

	created, err := scanLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return created, nil
}

func (r *repo) GetBySlug(ctx context.Context, slug string) (Link, error) {
	const op = "shortener.repo.GetBySlug"

	row := r.db.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM links WHERE slug = $1`,
		slug,
	)

	link, err := scanLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *repo) Update(ctx context.Context, slug, originalURL string) (Link, error) {
	const op = "shortener.repo.Update"

	row := r.db.QueryRow(ctx,
		`UPDATE links
		 SET original_url = $2, updated_at = now()
		 WHERE slug = $1
		 RETURNING `+linkColumns,
		slug, originalURL,
	)

	link, err := scanLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *repo) Delete(ctx context.Context, slug string) error {
	const op = "shortener.repo.Delete"

	tag, err := r.db.Exec(ctx, `DELETE FROM links WHERE slug = $1`, slug)
	if err != nil {
		return mapRepoError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, errors.New("link not found"))
	}
	return nil
}

func (r *repo) AddClicks(ctx context.Context, slug string, delta int64) error {
	const op = "shortener.repo.AddClicks"

	tag, err := r.db.Exec(ctx,
		`UPDATE links SET click_count = click_count + $2 WHERE slug = $1`,
		slug, delta,
	)
	if err != nil {
		return mapRepoError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, errors.New("link not found"))
	}
	return nil
}
