package services

import (
	"math"
	"time"

	"github.com/parchment-labs/recall/internal/core/domain"
)

// HybridScorer blends semantic similarity with a temporal signal built
// from recency and visit frequency. Weights come from settings; the
// defaults keep similarity dominant so an old, rarely visited page with
// a clearly better semantic match still outranks a fresh popular one.
type HybridScorer struct {
	halfLife         time.Duration
	similarityWeight float64
	temporalWeight   float64
	freshnessWeight  float64
	popularityWeight float64
	now              func() time.Time
}

// NewHybridScorer creates a scorer from scoring settings.
func NewHybridScorer(cfg domain.ScoringSettings) *HybridScorer {
	halfLife := time.Duration(cfg.HalfLifeDays * 24 * float64(time.Hour))
	if halfLife <= 0 {
		halfLife = 7 * 24 * time.Hour
	}
	return &HybridScorer{
		halfLife:         halfLife,
		similarityWeight: cfg.SimilarityWeight,
		temporalWeight:   cfg.TemporalWeight,
		freshnessWeight:  cfg.FreshnessWeight,
		popularityWeight: cfg.PopularityWeight,
		now:              time.Now,
	}
}

// Score combines similarity, entry age and visit count into the final
// rank score.
func (h *HybridScorer) Score(similarity float64, indexedAt time.Time, visitCount int) float64 {
	hybrid := h.freshnessWeight*h.Freshness(indexedAt) +
		h.popularityWeight*h.Popularity(visitCount)
	return h.similarityWeight*similarity + h.temporalWeight*hybrid
}

// Freshness returns the exponential recency factor in (0, 1]. An entry
// indexed right now scores 1; one indexed a half-life ago scores 0.5.
func (h *HybridScorer) Freshness(indexedAt time.Time) float64 {
	age := h.now().Sub(indexedAt)
	if age <= 0 {
		return 1
	}
	days := age.Hours() / 24
	halfLifeDays := h.halfLife.Hours() / 24
	return math.Exp(-math.Ln2 / halfLifeDays * days)
}

// Popularity maps a visit count to [0, 1) with diminishing returns:
// the third visit matters less than the first.
func (h *HybridScorer) Popularity(visitCount int) float64 {
	if visitCount <= 0 {
		return 0
	}
	return 1 - math.Exp(-float64(visitCount)/3)
}
