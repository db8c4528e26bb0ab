package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"carlot/internal/domain"
)

// listingDocument is the stored shape of a listing. The owner is kept under
// "user" as the plain id string from the access token, not an ObjectID
// reference.
type listingDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Owner       string             `bson:"user"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Images      []string           `bson:"images"`
	Tags        tagsDocument       `bson:"tags"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

type tagsDocument struct {
	CarType string `bson:"car_type,omitempty"`
	Company string `bson:"company,omitempty"`
	Dealer  string `bson:"dealer,omitempty"`
}

func toListingDocument(l *domain.Listing) listingDocument {
	images := l.Images
	if images == nil {
		images = []string{}
	}
	return listingDocument{
		Owner:       l.Owner,
		Title:       l.Title,
		Description: l.Description,
		Images:      images,
		Tags: tagsDocument{
			CarType: l.Tags.CarType,
			Company: l.Tags.Company,
			Dealer:  l.Tags.Dealer,
		},
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

func toDomainListing(d listingDocument) domain.Listing {
	return domain.Listing{
		ID:          d.ID.Hex(),
		Owner:       d.Owner,
		Title:       d.Title,
		Description: d.Description,
		Images:      d.Images,
		Tags: domain.Tags{
			CarType: d.Tags.CarType,
			Company: d.Tags.Company,
			Dealer:  d.Tags.Dealer,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
