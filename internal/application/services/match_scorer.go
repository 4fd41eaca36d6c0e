package services

import (
	"math"

	"github.com/zatekoja/carematch/internal/domain/entities"
)

// ScoringWeights holds every tunable in the match score
type ScoringWeights struct {
	// Distance multiplier is DistanceFloor + DistanceSpan*distanceFactor.
	DistanceFloor float64
	DistanceSpan  float64

	// Wait multiplier is WaitFloor + WaitSpan*waitFactor, where waitFactor
	// falls linearly to zero at WaitHorizonMinutes.
	WaitHorizonMinutes float64
	WaitFloor          float64
	WaitSpan           float64

	// Requests with urgency at or below UrgentThreshold are boosted towards
	// providers whose wait is under LowWaitMinutes and penalised otherwise.
	UrgentThreshold int
	LowWaitMinutes  int
	UrgentBoost     float64
	UrgentPenalty   float64
}

// DefaultScoringWeights returns the production weights
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		DistanceFloor:      0.3,
		DistanceSpan:       0.7,
		WaitHorizonMinutes: 120,
		WaitFloor:          0.5,
		WaitSpan:           0.5,
		UrgentThreshold:    2,
		LowWaitMinutes:     30,
		UrgentBoost:        1.2,
		UrgentPenalty:      0.8,
	}
}

// MatchScorer scores a candidate provider against a request. It holds no state
// beyond its weights and is safe for concurrent use.
type MatchScorer struct {
	weights ScoringWeights
}

// NewMatchScorer creates a scorer with the given weights
func NewMatchScorer(weights ScoringWeights) *MatchScorer {
	return &MatchScorer{weights: weights}
}

// Score returns a value in [0, 1]; higher is better. searchRadiusMiles must be positive.
func (s *MatchScorer) Score(request *entities.PatientRequest, candidate entities.NearbyProviderResult, searchRadiusMiles float64) float64 {
	if searchRadiusMiles <= 0 {
		panic("services: MatchScorer.Score called with non-positive search radius")
	}
	w := s.weights

	distanceFactor := math.Max(0, 1-candidate.DistanceMiles/searchRadiusMiles)
	score := w.DistanceFloor + w.DistanceSpan*distanceFactor

	// Unknown wait is neither a bonus nor a penalty.
	if candidate.CurrentWaitTime != nil {
		wait := *candidate.CurrentWaitTime
		waitFactor := math.Max(0, 1-float64(wait)/w.WaitHorizonMinutes)
		score *= w.WaitFloor + w.WaitSpan*waitFactor

		if request.UrgencyLevel <= w.UrgentThreshold {
			if wait < w.LowWaitMinutes {
				score *= w.UrgentBoost
			} else {
				score *= w.UrgentPenalty
			}
		}
	}

	return math.Min(1, math.Max(0, score))
}

// Rank scores every candidate and orders them by score desc, then distance asc, then provider id
func (s *MatchScorer) Rank(request *entities.PatientRequest, nearby []entities.NearbyProviderResult, searchRadiusMiles float64) []entities.MatchCandidate {
	candidates := make([]entities.MatchCandidate, 0, len(nearby))
	for _, n := range nearby {
		candidates = append(candidates, entities.MatchCandidate{
			NearbyProviderResult: n,
			Score:                s.Score(request, n, searchRadiusMiles),
		})
	}

	sortCandidates(candidates)
	return candidates
}
