package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"carlot/internal/domain"
	"carlot/internal/repository"
)

const defaultTTL = time.Hour

// ListingRepository serves Get from Redis and falls back to the wrapped
// repository on a miss. Writes go to the wrapped repository first and then
// drop the cached entry. Cache failures are logged and never fail a call.
type ListingRepository struct {
	next   repository.ListingRepository
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewClient connects to Redis at addr and verifies the connection.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewListingRepository(next repository.ListingRepository, client *redis.Client, ttl time.Duration, logger *logrus.Logger) repository.ListingRepository {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ListingRepository{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *ListingRepository) Init(ctx context.Context) error {
	return r.next.Init(ctx)
}

func (r *ListingRepository) Create(ctx context.Context, listing *domain.Listing) (string, error) {
	return r.next.Create(ctx, listing)
}

func (r *ListingRepository) Get(ctx context.Context, id, owner string) (*domain.Listing, error) {
	key := listingKey(owner, id)

	data, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var listing domain.Listing
		if err := json.Unmarshal(data, &listing); err == nil {
			return &listing, nil
		}
		r.logger.Warnf("cache: drop undecodable entry %s", key)
	case !errors.Is(err, redis.Nil):
		r.logger.Warnf("cache: get %s: %v", key, err)
	}

	listing, err := r.next.Get(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, listing)
	return listing, nil
}

func (r *ListingRepository) List(ctx context.Context, owner, search string) ([]domain.Listing, error) {
	return r.next.List(ctx, owner, search)
}

func (r *ListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	if err := r.next.Update(ctx, listing); err != nil {
		return err
	}
	r.invalidate(ctx, listingKey(listing.Owner, listing.ID))
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id, owner string) error {
	if err := r.next.Delete(ctx, id, owner); err != nil {
		return err
	}
	r.invalidate(ctx, listingKey(owner, id))
	return nil
}

func (r *ListingRepository) store(ctx context.Context, key string, listing *domain.Listing) {
	data, err := json.Marshal(listing)
	if err != nil {
		r.logger.Warnf("cache: encode %s: %v", key, err)
		return
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Warnf("cache: set %s: %v", key, err)
	}
}

func (r *ListingRepository) invalidate(ctx context.Context, key string) {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Warnf("cache: delete %s: %v", key, err)
	}
}

func listingKey(owner, id string) string {
	return "listing:" + owner + ":" + id
}

var _ repository.ListingRepository = (*ListingRepository)(nil)
