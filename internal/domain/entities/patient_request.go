package entities

import (
	"time"
)

// RequestStatus is the lifecycle state of a patient request
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusMatched   RequestStatus = "matched"
	RequestStatusFulfilled RequestStatus = "fulfilled"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// RequestStatuses lists every status in lifecycle order
var RequestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusMatched,
	RequestStatusFulfilled,
	RequestStatusCancelled,
}

var allowedTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending: {RequestStatusMatched, RequestStatusCancelled},
	RequestStatusMatched: {RequestStatusFulfilled, RequestStatusCancelled},
}

// Valid reports whether s is a recognised status
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusMatched, RequestStatusFulfilled, RequestStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusFulfilled || s == RequestStatusCancelled
}

// CanTransitionTo reports whether the state machine allows s -> next
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SourcesFor returns every status from which next can be reached
func SourcesFor(next RequestStatus) []RequestStatus {
	var sources []RequestStatus
	for _, from := range RequestStatuses {
		if from.CanTransitionTo(next) {
			sources = append(sources, from)
		}
	}
	return sources
}

// Urgency bounds. 1 is an emergency, 5 is routine or preventive care.
const (
	UrgencyEmergency = 1
	UrgencyRoutine   = 5
)

// PatientRequest is a patient's need for a service at a location
type PatientRequest struct {
	ID                string        `json:"id" db:"id"`
	PatientName       string        `json:"patient_name,omitempty" db:"patient_name"`
	Latitude          float64       `json:"latitude" db:"latitude"`
	Longitude         float64       `json:"longitude" db:"longitude"`
	RequestedService  ServiceType   `json:"requested_service" db:"requested_service"`
	UrgencyLevel      int           `json:"urgency_level" db:"urgency_level"`
	Status            RequestStatus `json:"status" db:"status"`
	MatchedProviderID *string       `json:"matched_provider_id,omitempty" db:"matched_provider_id"`
	MatchScore        *float64      `json:"match_score,omitempty" db:"match_score"`
	Notes             string        `json:"notes,omitempty" db:"notes"`
	MatchedAt         *time.Time    `json:"matched_at,omitempty" db:"matched_at"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// Location returns the request's coordinates
func (r *PatientRequest) Location() Location {
	return Location{Latitude: r.Latitude, Longitude: r.Longitude}
}

// IsMatchedTo reports whether the request already carries exactly this match
func (r *PatientRequest) IsMatchedTo(providerID string, score float64) bool {
	if r.Status != RequestStatusMatched || r.MatchedProviderID == nil || r.MatchScore == nil {
		return false
	}
	return *r.MatchedProviderID == providerID && *r.MatchScore == score
}
