package repository

import (
	"context"
	"errors"

	"carlot/internal/domain"
)

// ErrNotFound is returned when no listing matches the id and owner.
var ErrNotFound = errors.New("listing not found")

// ListingRepository exposes persistence operations for Listing records.
// Every lookup is scoped to the owner; a listing owned by someone else
// behaves exactly like a missing one.
type ListingRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, listing *domain.Listing) (string, error)
	Get(ctx context.Context, id, owner string) (*domain.Listing, error)
	List(ctx context.Context, owner, search string) ([]domain.Listing, error)
	Update(ctx context.Context, listing *domain.Listing) error
	Delete(ctx context.Context, id, owner string) error
}
