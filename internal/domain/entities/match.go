package entities

// NearbyProviderResult is a provider found within a search radius, with its distance
type NearbyProviderResult struct {
	ProviderID       string        `json:"provider_id"`
	ProviderName     string        `json:"provider_name"`
	ProviderType     ProviderType  `json:"provider_type"`
	DistanceMiles    float64       `json:"distance_miles"`
	CurrentWaitTime  *int          `json:"current_wait_time,omitempty"`
	MatchingServices []ServiceType `json:"matching_services"`
}

// MatchCandidate is a nearby provider scored against a specific request
type MatchCandidate struct {
	NearbyProviderResult
	Score float64 `json:"score"`
}

// MatchResult is the outcome of committing the best candidate to a request
type MatchResult struct {
	RequestID  string          `json:"request_id"`
	ProviderID string          `json:"provider_id"`
	Score      float64         `json:"score"`
	Candidate  *MatchCandidate `json:"candidate,omitempty"`
}

// RequestStatistics aggregates request counts over a created_at range
type RequestStatistics struct {
	Total             int                 `json:"total"`
	Pending           int                 `json:"pending"`
	Matched           int                 `json:"matched"`
	Fulfilled         int                 `json:"fulfilled"`
	Cancelled         int                 `json:"cancelled"`
	ByService         map[ServiceType]int `json:"by_service"`
	AverageMatchScore float64             `json:"average_match_score"`
}
