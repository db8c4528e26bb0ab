package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"carlot/internal/domain"
	"carlot/internal/repository"
	"carlot/internal/storage"
)

const (
	defaultFolder       = "cars"
	defaultMaxFiles     = 10
	defaultMaxFileBytes = 5 << 20
)

// ListingService coordinates the listing lifecycle across the repository and
// the image store.
type ListingService interface {
	CreateListing(ctx context.Context, in CreateListingInput) (*domain.Listing, error)
	ListListings(ctx context.Context, owner, search string) ([]domain.Listing, error)
	GetListing(ctx context.Context, owner, id string) (*domain.Listing, error)
	UpdateListing(ctx context.Context, in UpdateListingInput) (*domain.Listing, error)
	DeleteListing(ctx context.Context, owner, id string) error
}

// CreateListingInput carries a new listing. Tags holds the raw JSON object
// sent by the client.
type CreateListingInput struct {
	Owner       string
	Title       string
	Description string
	Tags        string
	Images      []storage.File
}

// UpdateListingInput carries a partial update. Empty strings leave the
// corresponding field untouched; a nil KeepImages keeps every current image.
type UpdateListingInput struct {
	Owner       string
	ID          string
	Title       string
	Description string
	Tags        string
	KeepImages  *string
	Images      []storage.File
}

// EventPublisher announces persisted lifecycle transitions.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.ListingEvent) error
}

// Recorder receives operational measurements.
type Recorder interface {
	ObserveImageOp(op string, err error)
	ObserveListingOp(op string)
}

// Config tunes a ListingService. Zero values fall back to defaults.
type Config struct {
	Folder       string
	MaxFiles     int
	MaxFileBytes int64
	// Concurrency bounds parallel image store calls per request; 0 means unbounded.
	Concurrency int
	Logger      *logrus.Logger
	Events      EventPublisher
	Recorder    Recorder
}

type listingService struct {
	cfg      Config
	listings repository.ListingRepository
	images   storage.ImageStore
}

func NewListingService(listings repository.ListingRepository, images storage.ImageStore, cfg Config) ListingService {
	if cfg.Folder == "" {
		cfg.Folder = defaultFolder
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = defaultMaxFiles
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = defaultMaxFileBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Events == nil {
		cfg.Events = noopPublisher{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = noopRecorder{}
	}
	return &listingService{
		cfg:      cfg,
		listings: listings,
		images:   images,
	}
}

func (s *listingService) CreateListing(ctx context.Context, in CreateListingInput) (*domain.Listing, error) {
	owner := strings.TrimSpace(in.Owner)
	if owner == "" {
		return nil, validationError("owner is required")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationError("title is required")
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, validationError("description is required")
	}
	if len(in.Images) == 0 {
		return nil, validationError("at least one image is required")
	}
	if len(in.Images) > s.cfg.MaxFiles {
		return nil, validationError("at most %d images are allowed", s.cfg.MaxFiles)
	}
	files, err := checkFiles(in.Images, s.cfg.MaxFileBytes)
	if err != nil {
		return nil, err
	}
	tags, err := ParseTags(in.Tags)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.uploadAll(ctx, files)
	if err != nil {
		return nil, err
	}

	listing := &domain.Listing{
		Owner:       owner,
		Title:       title,
		Description: description,
		Images:      imageURLs(uploaded),
		Tags:        tags,
	}
	if _, err := s.listings.Create(ctx, listing); err != nil {
		s.cfg.Logger.Errorf("create listing for %s: %v (%d uploaded images orphaned)", owner, err, len(uploaded))
		return nil, fmt.Errorf("create listing: %w", err)
	}

	s.cfg.Logger.Infof("listing %s created by %s with %d images", listing.ID, owner, len(listing.Images))
	s.cfg.Recorder.ObserveListingOp("create")
	s.publish(ctx, domain.EventListingCreated, listing)
	return listing, nil
}

func (s *listingService) ListListings(ctx context.Context, owner, search string) ([]domain.Listing, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, validationError("owner is required")
	}
	listings, err := s.listings.List(ctx, owner, strings.TrimSpace(search))
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return listings, nil
}

func (s *listingService) GetListing(ctx context.Context, owner, id string) (*domain.Listing, error) {
	return s.lookup(ctx, owner, id)
}

func (s *listingService) UpdateListing(ctx context.Context, in UpdateListingInput) (*domain.Listing, error) {
	current, err := s.lookup(ctx, in.Owner, in.ID)
	if err != nil {
		return nil, err
	}

	keep := append([]string(nil), current.Images...)
	if in.KeepImages != nil {
		keep, err = ParseKeepImages(*in.KeepImages)
		if err != nil {
			return nil, err
		}
		for _, u := range keep {
			if !current.HasImage(u) {
				return nil, validationError("image %q does not belong to listing %s", u, current.ID)
			}
		}
	}

	// an empty or null tags field leaves the current tags untouched
	tags := current.Tags
	if raw := strings.TrimSpace(in.Tags); raw != "" && raw != "null" {
		if tags, err = ParseTags(raw); err != nil {
			return nil, err
		}
	}

	if len(keep)+len(in.Images) == 0 {
		return nil, validationError("a listing must keep at least one image")
	}
	if len(keep)+len(in.Images) > s.cfg.MaxFiles {
		return nil, validationError("at most %d images are allowed", s.cfg.MaxFiles)
	}
	files, err := checkFiles(in.Images, s.cfg.MaxFileBytes)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.uploadAll(ctx, files)
	if err != nil {
		return nil, err
	}

	updated := *current
	if title := strings.TrimSpace(in.Title); title != "" {
		updated.Title = title
	}
	if description := strings.TrimSpace(in.Description); description != "" {
		updated.Description = description
	}
	updated.Tags = tags
	updated.Images = append(keep, imageURLs(uploaded)...)

	if err := s.listings.Update(ctx, &updated); err != nil {
		if len(uploaded) > 0 {
			s.cfg.Logger.Errorf("update listing %s: %v (%d uploaded images orphaned)", current.ID, err, len(uploaded))
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update listing: %w", err)
	}

	// the record no longer references these, so failures only leak objects
	if removed := withoutKept(current.Images, keep); len(removed) > 0 {
		if err := s.deleteImages(ctx, removed, BestEffort); err != nil {
			s.cfg.Logger.Warnf("listing %s: superseded images not fully deleted: %v", current.ID, err)
		}
	}

	s.cfg.Logger.Infof("listing %s updated by %s", updated.ID, updated.Owner)
	s.cfg.Recorder.ObserveListingOp("update")
	s.publish(ctx, domain.EventListingUpdated, &updated)
	return &updated, nil
}

func (s *listingService) DeleteListing(ctx context.Context, owner, id string) error {
	current, err := s.lookup(ctx, owner, id)
	if err != nil {
		return err
	}

	// the record stays while any of its images survive, so a retry can finish
	if err := s.deleteImages(ctx, current.Images, FailFast); err != nil {
		return upstreamError("delete images", err)
	}

	if err := s.listings.Delete(ctx, current.ID, current.Owner); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete listing: %w", err)
	}

	s.cfg.Logger.Infof("listing %s deleted by %s", current.ID, current.Owner)
	s.cfg.Recorder.ObserveListingOp("delete")
	s.publish(ctx, domain.EventListingDeleted, current)
	return nil
}

func (s *listingService) lookup(ctx context.Context, owner, id string) (*domain.Listing, error) {
	owner = strings.TrimSpace(owner)
	id = strings.TrimSpace(id)
	if owner == "" || id == "" {
		return nil, ErrNotFound
	}

	listing, err := s.listings.Get(ctx, id, owner)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return listing, nil
}

func (s *listingService) uploadAll(ctx context.Context, files []storage.File) ([]storage.Image, error) {
	uploaded, err := fanOut(ctx, FailFast, s.cfg.Concurrency, files, func(ctx context.Context, f storage.File) (storage.Image, error) {
		img, err := s.images.Upload(ctx, f, s.cfg.Folder)
		s.cfg.Recorder.ObserveImageOp("upload", err)
		return img, err
	})
	if err != nil {
		return nil, upstreamError("upload images", err)
	}
	return uploaded, nil
}

// deleteImages removes the objects behind urls. URLs that cannot be mapped
// to a key are skipped with a warning and recorded as failed deletes.
func (s *listingService) deleteImages(ctx context.Context, urls []string, policy JoinPolicy) error {
	ids := make([]string, 0, len(urls))
	for _, u := range urls {
		id, err := storage.PublicID(u, s.cfg.Folder)
		if err != nil {
			s.cfg.Logger.Warnf("skip image deletion: %v", err)
			s.cfg.Recorder.ObserveImageOp("delete", err)
			continue
		}
		ids = append(ids, id)
	}

	_, err := fanOut(ctx, policy, s.cfg.Concurrency, ids, func(ctx context.Context, id string) (struct{}, error) {
		err := s.images.Delete(ctx, id)
		s.cfg.Recorder.ObserveImageOp("delete", err)
		if err != nil && policy == BestEffort {
			s.cfg.Logger.Warnf("delete image %s: %v", id, err)
		}
		return struct{}{}, err
	})
	return err
}

func (s *listingService) publish(ctx context.Context, typ domain.EventType, listing *domain.Listing) {
	event := domain.ListingEvent{
		Type:       typ,
		ListingID:  listing.ID,
		Owner:      listing.Owner,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.cfg.Events.Publish(ctx, event); err != nil {
		s.cfg.Logger.Warnf("publish listing %s event for %s: %v", typ, listing.ID, err)
	}
}

func imageURLs(images []storage.Image) []string {
	urls := make([]string, len(images))
	for i, img := range images {
		urls[i] = img.URL
	}
	return urls
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.ListingEvent) error { return nil }

type noopRecorder struct{}

func (noopRecorder) ObserveImageOp(string, error) {}
func (noopRecorder) ObserveListingOp(string)      {}
