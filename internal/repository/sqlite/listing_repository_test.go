package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carlot/internal/domain"
	"carlot/internal/repository"
)

func newTestRepository(t *testing.T) repository.ListingRepository {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "nested", "carlot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewListingRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func seedListing(t *testing.T, repo repository.ListingRepository, owner, title string, tags domain.Tags) *domain.Listing {
	t.Helper()

	listing := &domain.Listing{
		Owner:       owner,
		Title:       title,
		Description: title + " in good condition",
		Images:      []string{"https://img.example.com/cars/" + title},
		Tags:        tags,
	}
	id, err := repo.Create(context.Background(), listing)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return listing
}

func TestListingRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created := seedListing(t, repo, "owner-1", "Toyota Corolla", domain.Tags{CarType: "sedan", Company: "Toyota", Dealer: "Downtown Motors"})
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := repo.Get(ctx, created.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "owner-1", got.Owner)
	assert.Equal(t, "Toyota Corolla", got.Title)
	assert.Equal(t, created.Description, got.Description)
	assert.Equal(t, created.Images, got.Images)
	assert.Equal(t, created.Tags, got.Tags)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
}

func TestListingRepository_GetScopedToOwner(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created := seedListing(t, repo, "owner-1", "Civic", domain.Tags{})

	_, err := repo.Get(ctx, created.ID, "owner-2")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.Get(ctx, "does-not-exist", "owner-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListingRepository_ListNewestFirst(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := seedListing(t, repo, "owner-1", "first", domain.Tags{})
	second := seedListing(t, repo, "owner-1", "second", domain.Tags{})
	seedListing(t, repo, "owner-2", "foreign", domain.Tags{})

	listings, err := repo.List(ctx, "owner-1", "")
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, second.ID, listings[0].ID)
	assert.Equal(t, first.ID, listings[1].ID)
}

func TestListingRepository_ListSearch(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	corolla := seedListing(t, repo, "owner-1", "Toyota Corolla", domain.Tags{})
	truck := seedListing(t, repo, "owner-1", "Pickup", domain.Tags{CarType: "Truck"})
	dealer := seedListing(t, repo, "owner-1", "Roadster", domain.Tags{Dealer: "Sunset Autos"})
	brand := seedListing(t, repo, "owner-1", "Hatchback", domain.Tags{Company: "Volkswagen"})
	seedListing(t, repo, "owner-2", "Corolla of someone else", domain.Tags{})

	tests := []struct {
		name   string
		search string
		want   []string
	}{
		{name: "title lower case", search: "corolla", want: []string{corolla.ID}},
		{name: "title upper case", search: "COROLLA", want: []string{corolla.ID}},
		{name: "car type", search: "truck", want: []string{truck.ID}},
		{name: "dealer", search: "sunset", want: []string{dealer.ID}},
		{name: "company substring", search: "wagen", want: []string{brand.ID}},
		{name: "description", search: "good condition", want: []string{brand.ID, dealer.ID, truck.ID, corolla.ID}},
		{name: "no match", search: "ferrari", want: nil},
		{name: "wildcards are literal", search: "%", want: nil},
		{name: "underscore is literal", search: "_", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listings, err := repo.List(ctx, "owner-1", tt.search)
			require.NoError(t, err)

			var ids []string
			for _, l := range listings {
				assert.Equal(t, "owner-1", l.Owner)
				ids = append(ids, l.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestListingRepository_ListSearchNonASCII(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	skoda := seedListing(t, repo, "owner-1", "ŠKODA Octavia", domain.Tags{Company: "Škoda", Dealer: "Autohaus Müller"})
	seedListing(t, repo, "owner-1", "Golf", domain.Tags{Company: "Volkswagen"})

	for _, term := range []string{"ŠKODA", "Škoda", "škoda", "octavia", "MÜLLER", "müller"} {
		t.Run(term, func(t *testing.T) {
			listings, err := repo.List(ctx, "owner-1", term)
			require.NoError(t, err)
			require.Len(t, listings, 1)
			assert.Equal(t, skoda.ID, listings[0].ID)
		})
	}
}

func TestListingRepository_Update(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	listing := seedListing(t, repo, "owner-1", "Golf", domain.Tags{Company: "VW"})
	createdAt := listing.CreatedAt

	listing.Title = "Golf GTI"
	listing.Images = []string{"https://img.example.com/cars/a", "https://img.example.com/cars/b"}
	listing.Tags = domain.Tags{Company: "Volkswagen", Dealer: "Autohaus"}
	require.NoError(t, repo.Update(ctx, listing))
	assert.False(t, listing.UpdatedAt.Before(createdAt))

	got, err := repo.Get(ctx, listing.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "Golf GTI", got.Title)
	assert.Equal(t, listing.Images, got.Images)
	assert.Equal(t, listing.Tags, got.Tags)
	assert.True(t, createdAt.Equal(got.CreatedAt))

	foreign := *listing
	foreign.Owner = "owner-2"
	assert.ErrorIs(t, repo.Update(ctx, &foreign), repository.ErrNotFound)
}

func TestListingRepository_Delete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	listing := seedListing(t, repo, "owner-1", "Beetle", domain.Tags{})

	assert.ErrorIs(t, repo.Delete(ctx, listing.ID, "owner-2"), repository.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, listing.ID, "owner-1"))

	_, err := repo.Get(ctx, listing.ID, "owner-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, listing.ID, "owner-1"), repository.ErrNotFound)
}
