package entities

import (
	"time"
)

// ProviderType is the kind of facility a provider operates
type ProviderType string

const (
	ProviderTypeClinic     ProviderType = "clinic"
	ProviderTypePharmacy   ProviderType = "pharmacy"
	ProviderTypeTelehealth ProviderType = "telehealth"
	ProviderTypeHospital   ProviderType = "hospital"
	ProviderTypePopUp      ProviderType = "pop_up"
	ProviderTypeMobile     ProviderType = "mobile"
	ProviderTypeUrgentCare ProviderType = "urgent_care"
)

// ProviderTypes lists every recognised provider type
var ProviderTypes = []ProviderType{
	ProviderTypeClinic,
	ProviderTypePharmacy,
	ProviderTypeTelehealth,
	ProviderTypeHospital,
	ProviderTypePopUp,
	ProviderTypeMobile,
	ProviderTypeUrgentCare,
}

// Valid reports whether t is a recognised provider type
func (t ProviderType) Valid() bool {
	for _, known := range ProviderTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ServiceType is a care service a provider offers and a patient can request
type ServiceType string

const (
	ServiceGeneral      ServiceType = "general"
	ServiceDental       ServiceType = "dental"
	ServiceMaternalCare ServiceType = "maternal_care"
	ServiceUrgentCare   ServiceType = "urgent_care"
	ServiceMentalHealth ServiceType = "mental_health"
	ServicePediatric    ServiceType = "pediatric"
	ServiceVaccination  ServiceType = "vaccination"
	ServiceSpecialty    ServiceType = "specialty"
	ServiceDiagnostic   ServiceType = "diagnostic"
)

// ServiceTypes lists every recognised service type
var ServiceTypes = []ServiceType{
	ServiceGeneral,
	ServiceDental,
	ServiceMaternalCare,
	ServiceUrgentCare,
	ServiceMentalHealth,
	ServicePediatric,
	ServiceVaccination,
	ServiceSpecialty,
	ServiceDiagnostic,
}

// Valid reports whether s is a recognised service type
func (s ServiceType) Valid() bool {
	for _, known := range ServiceTypes {
		if s == known {
			return true
		}
	}
	return false
}

// Location represents geographical coordinates
type Location struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}

// Provider represents a healthcare provider that patient requests can be matched to
type Provider struct {
	ID                  string        `json:"id" db:"id"`
	Name                string        `json:"name" db:"name"`
	Type                ProviderType  `json:"type" db:"provider_type"`
	Services            []ServiceType `json:"services" db:"services"`
	Location            *Location     `json:"location,omitempty" db:"-"`
	CurrentWaitTime     *int          `json:"current_wait_time,omitempty" db:"current_wait_time"`
	AcceptsWalkIns      bool          `json:"accepts_walk_ins" db:"accepts_walk_ins"`
	TelehealthAvailable bool          `json:"telehealth_available" db:"telehealth_available"`
	Languages           []string      `json:"languages,omitempty" db:"languages"`
	AcceptedInsurance   []string      `json:"accepted_insurance,omitempty" db:"accepted_insurance"`
	Rating              *float64      `json:"rating,omitempty" db:"rating"`
	IsActive            bool          `json:"is_active" db:"is_active"`
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at" db:"updated_at"`
}

// HasLocation reports whether the provider can take part in distance-based searches
func (p *Provider) HasLocation() bool {
	return p != nil && p.Location != nil
}

// OffersService reports whether the provider lists the given service
func (p *Provider) OffersService(service ServiceType) bool {
	for _, s := range p.Services {
		if s == service {
			return true
		}
	}
	return false
}
