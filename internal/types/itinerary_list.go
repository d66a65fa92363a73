package types

import (
	"errors"
	"time"
)

var ErrItineraryNotFound = errors.New("itinerary not found")

// MissingExplanation is shown for saved places that never got an explanation.
const MissingExplanation = "Explanation not available."

// Itinerary is the persisted unit, addressed by its share token.
type Itinerary struct {
	ShareToken      string    `json:"shareToken"`
	Destination     string    `json:"destination"`
	Interests       []string  `json:"user_interests"`
	CreatedAt       time.Time `json:"createdAt"`
	Recommendations []Place   `json:"recommendations"`
}

// ItinerarySummary is one entry of the recent itineraries listing.
type ItinerarySummary struct {
	ShareToken  string    `json:"shareToken"`
	CacheKey    string    `json:"cacheKey"`
	Destination string    `json:"destination"`
	Interests   []string  `json:"interests"`
	Timestamp   time.Time `json:"timestamp"`
	PlaceCount  int       `json:"placeCount"`
}

// GenerateItineraryRequest is the body of POST /generate-itinerary.
type GenerateItineraryRequest struct {
	Destination string   `json:"destination"`
	Interests   []string `json:"interests"`
	// FetchExplanations selects the immediate flow when true. Omitted or false
	// returns recommendations only and leaves explanations to the caller.
	FetchExplanations      *bool                   `json:"fetchExplanations,omitempty"`
	SaveCompletedItinerary bool                    `json:"saveCompletedItinerary,omitempty"`
	CompletedItineraryData *CompletedItineraryData `json:"completedItineraryData,omitempty"`
}

type CompletedItineraryData struct {
	Destination     string   `json:"destination,omitempty"`
	Interests       []string `json:"interests,omitempty"`
	Recommendations []Place  `json:"recommendations"`
}

// SaveItineraryParams is the validated input of the save flow.
type SaveItineraryParams struct {
	Destination string   `json:"destination" validate:"required"`
	Interests   []string `json:"interests" validate:"required,min=1,unique,dive,required"`
	Places      []Place  `json:"recommendations" validate:"required,min=1,dive"`
}

type RecommendationsRequest struct {
	Destination string   `json:"destination" validate:"required"`
	Interests   []string `json:"interests" validate:"required,min=1,unique,dive,required"`
}

const (
	StatusRecommendationsReady = "recommendations_ready"
	StatusNoResults            = "no_results"
)

type GenerateItineraryResponse struct {
	Status          string  `json:"status"`
	Recommendations []Place `json:"recommendations"`
	ShareToken      *string `json:"shareToken"`
}

type SaveItineraryResponse struct {
	ShareToken string `json:"shareToken"`
}

// ExplainPlaceRequest is the body of POST /explain-place.
type ExplainPlaceRequest struct {
	Place         *Place   `json:"place" validate:"required"`
	UserInterests []string `json:"userInterests" validate:"required,min=1,unique,dive,required"`
	ShareToken    string   `json:"shareToken,omitempty"`
}

type ExplainPlaceResponse struct {
	PlaceID     string `json:"placeId"`
	Explanation string `json:"explanation"`
}

type SharedItineraryResponse struct {
	SharedItinerary *Itinerary `json:"sharedItinerary"`
}

type RecentItinerariesResponse struct {
	RecentItineraries []ItinerarySummary `json:"recentItineraries"`
}
