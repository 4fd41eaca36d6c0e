package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/carematch/internal/adapters/database"
	"github.com/zatekoja/carematch/internal/adapters/search"
	"github.com/zatekoja/carematch/internal/application/services"
	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/carematch/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/carematch/internal/infrastructure/observability"
	"github.com/zatekoja/carematch/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-seed", cfg.Environment, cfg.LogLevel)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer pgClient.Close()

	ctx := context.Background()

	var index *search.TypesenseAdapter
	if cfg.Typesense.Enabled {
		if tsClient, err := typesense.NewClient(&cfg.Typesense); err == nil {
			if err := tsClient.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to init Typesense schema")
			}
			index = search.NewTypesenseAdapter(tsClient)
		}
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating tables before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE patient_requests, providers`); err != nil {
			log.Fatal().Err(err).Msg("failed to reset tables")
		}
	}

	providerStore := database.NewProviderAdapter(pgClient)
	now := time.Now().UTC()

	for _, p := range seedProviders() {
		p.ID = uuid.New().String()
		p.IsActive = true
		p.CreatedAt = now
		p.UpdatedAt = now
		if err := providerStore.Create(ctx, p); err != nil {
			log.Warn().Err(err).Str("provider", p.Name).Msg("failed to create provider")
			continue
		}
		if index != nil {
			if err := index.Index(ctx, p); err != nil {
				log.Warn().Err(err).Str("provider", p.Name).Msg("failed to index provider")
			}
		}
	}

	requests := services.NewRequestService(database.NewPatientRequestAdapter(pgClient), nil)
	for _, in := range seedRequests() {
		if _, err := requests.Create(ctx, in); err != nil {
			log.Warn().Err(err).Str("patient", in.PatientName).Msg("failed to create request")
		}
	}

	log.Info().Msg("seeding completed")
}

func seedProviders() []*entities.Provider {
	wait := func(m int) *int { return &m }
	rating := func(r float64) *float64 { return &r }
	at := func(lat, lng float64) *entities.Location { return &entities.Location{Latitude: lat, Longitude: lng} }

	return []*entities.Provider{
		{
			Name:              "General Hospital Lagos",
			Type:              entities.ProviderTypeHospital,
			Services:          []entities.ServiceType{entities.ServiceGeneral, entities.ServiceUrgentCare, entities.ServiceDiagnostic, entities.ServiceMaternalCare},
			Location:          at(6.4531, 3.3958),
			CurrentWaitTime:   wait(45),
			AcceptsWalkIns:    true,
			Languages:         []string{"english", "yoruba"},
			AcceptedInsurance: []string{"nhis", "reliance"},
			Rating:            rating(4.2),
		},
		{
			Name:                "LASUTH Outpatient Clinic",
			Type:                entities.ProviderTypeClinic,
			Services:            []entities.ServiceType{entities.ServiceGeneral, entities.ServicePediatric, entities.ServiceVaccination},
			Location:            at(6.5967, 3.3421),
			CurrentWaitTime:     wait(20),
			AcceptsWalkIns:      true,
			TelehealthAvailable: true,
			Languages:           []string{"english", "yoruba", "igbo"},
			AcceptedInsurance:   []string{"nhis", "hygeia"},
			Rating:              rating(4.5),
		},
		{
			Name:              "Ikeja Dental Centre",
			Type:              entities.ProviderTypeClinic,
			Services:          []entities.ServiceType{entities.ServiceDental},
			Location:          at(6.6018, 3.3515),
			CurrentWaitTime:   wait(10),
			Languages:         []string{"english"},
			AcceptedInsurance: []string{"axa_mansard"},
			Rating:            rating(4.7),
		},
		{
			Name:                "MindWell Telehealth",
			Type:                entities.ProviderTypeTelehealth,
			Services:            []entities.ServiceType{entities.ServiceMentalHealth, entities.ServiceGeneral},
			Location:            at(6.4300, 3.4216),
			TelehealthAvailable: true,
			Languages:           []string{"english", "hausa"},
			Rating:              rating(4.1),
		},
		{
			Name:              "Surulere Urgent Care",
			Type:              entities.ProviderTypeUrgentCare,
			Services:          []entities.ServiceType{entities.ServiceUrgentCare, entities.ServiceGeneral},
			Location:          at(6.5000, 3.3500),
			CurrentWaitTime:   wait(5),
			AcceptsWalkIns:    true,
			Languages:         []string{"english", "yoruba"},
			AcceptedInsurance: []string{"nhis", "reliance", "hygeia"},
			Rating:            rating(3.9),
		},
		{
			Name:            "Ikorodu Mobile Vaccination Unit",
			Type:            entities.ProviderTypeMobile,
			Services:        []entities.ServiceType{entities.ServiceVaccination, entities.ServicePediatric},
			Location:        at(6.5965, 3.5075),
			CurrentWaitTime: wait(30),
			AcceptsWalkIns:  true,
			Languages:       []string{"yoruba"},
		},
		{
			Name:              "National Hospital Abuja",
			Type:              entities.ProviderTypeHospital,
			Services:          []entities.ServiceType{entities.ServiceSpecialty, entities.ServiceDiagnostic, entities.ServiceMaternalCare},
			Location:          at(9.0333, 7.4667),
			CurrentWaitTime:   wait(60),
			Languages:         []string{"english", "hausa"},
			AcceptedInsurance: []string{"nhis"},
			Rating:            rating(4.6),
		},
		{
			Name:           "Garki Community Pharmacy",
			Type:           entities.ProviderTypePharmacy,
			Services:       []entities.ServiceType{entities.ServiceVaccination},
			Location:       at(9.0433, 7.4833),
			AcceptsWalkIns: true,
			Languages:      []string{"english", "hausa"},
		},
	}
}

func seedRequests() []services.CreateRequestInput {
	return []services.CreateRequestInput{
		{PatientName: "Adaeze Okafor", Latitude: 6.4550, Longitude: 3.3941, RequestedService: "urgent_care", UrgencyLevel: 1},
		{PatientName: "Tunde Bakare", Latitude: 6.5950, Longitude: 3.3400, RequestedService: "vaccination", UrgencyLevel: 4},
		{PatientName: "Ngozi Eze", Latitude: 6.6000, Longitude: 3.3500, RequestedService: "dental", UrgencyLevel: 3},
		{PatientName: "Musa Ibrahim", Latitude: 9.0400, Longitude: 7.4700, RequestedService: "maternal_care", UrgencyLevel: 2},
		{PatientName: "Kemi Adeyemi", Latitude: 6.4300, Longitude: 3.4200, RequestedService: "mental_health", UrgencyLevel: 3, Notes: "prefers telehealth"},
	}
}
