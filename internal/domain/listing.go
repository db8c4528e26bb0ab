package domain

import "time"

// Tags carries the free-text metadata used for filtering and search.
type Tags struct {
	CarType string `json:"car_type"`
	Company string `json:"company"`
	Dealer  string `json:"dealer"`
}

// Listing represents a car offered for sale by its owner.
type Listing struct {
	ID          string
	Owner       string
	Title       string
	Description string
	Images      []string
	Tags        Tags
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasImage reports whether url is one of the listing's images.
func (l *Listing) HasImage(url string) bool {
	for _, img := range l.Images {
		if img == url {
			return true
		}
	}
	return false
}

// EventType names a listing lifecycle transition.
type EventType string

const (
	EventListingCreated EventType = "created"
	EventListingUpdated EventType = "updated"
	EventListingDeleted EventType = "deleted"
)

// ListingEvent is emitted after a lifecycle transition has been persisted.
type ListingEvent struct {
	Type       EventType `json:"type"`
	ListingID  string    `json:"listing_id"`
	Owner      string    `json:"owner"`
	OccurredAt time.Time `json:"occurred_at"`
}
