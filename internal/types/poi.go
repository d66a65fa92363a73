package types

// Place is one recommended location returned by the taste graph.
type Place struct {
	ID            string  `json:"id" validate:"required"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Description   string  `json:"description"`
	AffinityScore float64 `json:"affinityScore"`
	// Metadata is the raw upstream entity, passed through untouched for display
	// and explanation grounding.
	Metadata       map[string]any `json:"qlooMetadata"`
	WhyRecommended string         `json:"whyRecommended,omitempty"`
}

// SearchResult is a single hit from the tag or entity search endpoints.
type SearchResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}
