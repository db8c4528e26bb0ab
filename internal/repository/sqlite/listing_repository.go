package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"carlot/internal/domain"
	"carlot/internal/repository"
)

const (
	createListingsTable = `
CREATE TABLE IF NOT EXISTS listings (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	images TEXT NOT NULL DEFAULT '[]',
	car_type TEXT NOT NULL DEFAULT '',
	company TEXT NOT NULL DEFAULT '',
	dealer TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`
	createListingsOwnerIndex = `
CREATE INDEX IF NOT EXISTS idx_listings_owner_created ON listings (owner, created_at DESC);
`
	selectListingColumns = `id, owner, title, description, images, car_type, company, dealer, created_at, updated_at`
)

type ListingRepository struct {
	db *sql.DB
}

func NewListingRepository(db *sql.DB) repository.ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createListingsTable); err != nil {
		return fmt.Errorf("create listings table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createListingsOwnerIndex); err != nil {
		return fmt.Errorf("create listings index: %w", err)
	}
	return nil
}

func (r *ListingRepository) Create(ctx context.Context, listing *domain.Listing) (string, error) {
	images, err := encodeImages(listing.Images)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	listing.ID = uuid.NewString()
	listing.CreatedAt = now
	listing.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
INSERT INTO listings (id, owner, title, description, images, car_type, company, dealer, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		listing.ID,
		listing.Owner,
		listing.Title,
		listing.Description,
		images,
		listing.Tags.CarType,
		listing.Tags.Company,
		listing.Tags.Dealer,
		listing.CreatedAt,
		listing.UpdatedAt,
	)
	if err != nil {
		listing.ID = ""
		return "", fmt.Errorf("insert listing: %w", err)
	}
	return listing.ID, nil
}

func (r *ListingRepository) Get(ctx context.Context, id, owner string) (*domain.Listing, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+selectListingColumns+`
FROM listings
WHERE id = ? AND owner = ?`,
		id,
		owner,
	)
	return scanListing(row)
}

func (r *ListingRepository) List(ctx context.Context, owner, search string) ([]domain.Listing, error) {
	query := `
SELECT ` + selectListingColumns + `
FROM listings
WHERE owner = ?`
	args := []any{owner}

	if term := strings.TrimSpace(search); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		query += `
AND (
	` + foldFunc + `(title) LIKE ? ESCAPE '\'
	OR ` + foldFunc + `(description) LIKE ? ESCAPE '\'
	OR ` + foldFunc + `(car_type) LIKE ? ESCAPE '\'
	OR ` + foldFunc + `(company) LIKE ? ESCAPE '\'
	OR ` + foldFunc + `(dealer) LIKE ? ESCAPE '\'
)`
		args = append(args, pattern, pattern, pattern, pattern, pattern)
	}
	query += `
ORDER BY created_at DESC, rowid DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	listings := make([]domain.Listing, 0)
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, nil
}

func (r *ListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	images, err := encodeImages(listing.Images)
	if err != nil {
		return err
	}

	updatedAt := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE listings
SET title=?, description=?, images=?, car_type=?, company=?, dealer=?, updated_at=?
WHERE id=? AND owner=?`,
		listing.Title,
		listing.Description,
		images,
		listing.Tags.CarType,
		listing.Tags.Company,
		listing.Tags.Dealer,
		updatedAt,
		listing.ID,
		listing.Owner,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	listing.UpdatedAt = updatedAt
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id, owner string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanListing(row interface {
	Scan(dest ...any) error
}) (*domain.Listing, error) {
	var (
		listing domain.Listing
		images  string
	)
	if err := row.Scan(
		&listing.ID,
		&listing.Owner,
		&listing.Title,
		&listing.Description,
		&images,
		&listing.Tags.CarType,
		&listing.Tags.Company,
		&listing.Tags.Dealer,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	if err := json.Unmarshal([]byte(images), &listing.Images); err != nil {
		return nil, fmt.Errorf("decode listing images: %w", err)
	}
	return &listing, nil
}

func encodeImages(images []string) (string, error) {
	if images == nil {
		images = []string{}
	}
	b, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("encode listing images: %w", err)
	}
	return string(b), nil
}

// escapeLike escapes LIKE wildcards so the term matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ repository.ListingRepository = (*ListingRepository)(nil)
