package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"carlot/internal/domain"
	"carlot/internal/repository"
)

// searchFields are matched by List when a search term is given.
var searchFields = []string{"title", "description", "tags.car_type", "tags.company", "tags.dealer"}

type ListingRepository struct {
	collection *mongo.Collection
}

func NewListingRepository(db *mongo.Database, collection string) repository.ListingRepository {
	return &ListingRepository{collection: db.Collection(collection)}
}

func (r *ListingRepository) Init(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("user_createdAt"),
	})
	if err != nil {
		return fmt.Errorf("create listings index: %w", err)
	}
	return nil
}

func (r *ListingRepository) Create(ctx context.Context, listing *domain.Listing) (string, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	listing.CreatedAt = now
	listing.UpdatedAt = now

	doc := toListingDocument(listing)
	doc.ID = primitive.NewObjectID()

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert listing: %w", err)
	}
	listing.ID = doc.ID.Hex()
	return listing.ID, nil
}

func (r *ListingRepository) Get(ctx context.Context, id, owner string) (*domain.Listing, error) {
	filter, ok := ownedBy(id, owner)
	if !ok {
		return nil, repository.ErrNotFound
	}

	var doc listingDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find listing: %w", err)
	}
	listing := toDomainListing(doc)
	return &listing, nil
}

func (r *ListingRepository) List(ctx context.Context, owner, search string) ([]domain.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, listFilter(owner, search), opts)
	if err != nil {
		return nil, fmt.Errorf("find listings: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []listingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}

	listings := make([]domain.Listing, 0, len(docs))
	for _, doc := range docs {
		listings = append(listings, toDomainListing(doc))
	}
	return listings, nil
}

func (r *ListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	filter, ok := ownedBy(listing.ID, listing.Owner)
	if !ok {
		return repository.ErrNotFound
	}

	doc := toListingDocument(listing)
	doc.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{"$set": bson.M{
		"title":       doc.Title,
		"description": doc.Description,
		"images":      doc.Images,
		"tags":        doc.Tags,
		"updatedAt":   doc.UpdatedAt,
	}}

	var updated listingDocument
	err := r.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("update listing: %w", err)
	}
	*listing = toDomainListing(updated)
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id, owner string) error {
	filter, ok := ownedBy(id, owner)
	if !ok {
		return repository.ErrNotFound
	}

	res, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ownedBy builds the point filter for a listing. A malformed id cannot match
// any document, so it is reported the same way as a missing one.
func ownedBy(id, owner string) (bson.M, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false
	}
	return bson.M{"_id": oid, "user": owner}, true
}

func listFilter(owner, search string) bson.M {
	filter := bson.M{"user": owner}

	term := strings.TrimSpace(search)
	if term == "" {
		return filter
	}

	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
	or := make(bson.A, 0, len(searchFields))
	for _, field := range searchFields {
		or = append(or, bson.M{field: pattern})
	}
	filter["$or"] = or
	return filter
}

var _ repository.ListingRepository = (*ListingRepository)(nil)
