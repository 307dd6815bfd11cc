package deal

import (
	"math"

	"github.com/dealpress/dealpress/app/cfg"
)

// Weights controls the scoring formula. The sub-score weights are
// renormalized internally, so they only need to be proportional.
type Weights struct {
	Discount   float64
	Popularity float64
	Quality    float64

	// DiscountCap is the discount percentage mapped to a full discount
	// sub-score. Discounts above the cap clamp at 100.
	DiscountCap int

	// ReviewFloor dampens the rating of listings with few reviews. A rating
	// backed by fewer reviews than the floor is pulled toward the neutral
	// midpoint.
	ReviewFloor int
}

func WeightsFromConfig() Weights {
	c := cfg.Get()
	return Weights{
		Discount:    c.WeightDiscount,
		Popularity:  c.WeightPopularity,
		Quality:     c.WeightQuality,
		DiscountCap: c.DiscountCap,
		ReviewFloor: c.ReviewFloor,
	}
}

const neutralSubScore = 50.0

// worstRank anchors the inverse-log rank transform: rank 1 scores 100,
// ranks at or beyond worstRank score 0.
const worstRank = 1_000_000

// Scorer computes the 0-100 attractiveness score of a listing. Pure and
// deterministic: same listing and weights always produce the same score.
type Scorer struct {
	weights Weights
}

func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

func (s *Scorer) Score(l Listing) int {
	discount := s.discountSubScore(l.DiscountPct)

	// Without rank and rating there is nothing to average against; the
	// discount carries the whole score.
	if l.SalesRank == nil && l.Rating == nil {
		return clampScore(discount)
	}

	popularity := neutralSubScore
	if l.SalesRank != nil {
		popularity = s.popularitySubScore(*l.SalesRank)
	}

	quality := neutralSubScore
	if l.Rating != nil {
		reviews := 0
		if l.ReviewCount != nil {
			reviews = *l.ReviewCount
		}
		quality = s.qualitySubScore(*l.Rating, reviews)
	}

	w := s.weights
	totalWeight := w.Discount + w.Popularity + w.Quality
	if totalWeight <= 0 {
		return clampScore(discount)
	}

	weighted := (discount*w.Discount + popularity*w.Popularity + quality*w.Quality) / totalWeight
	return clampScore(weighted)
}

func (s *Scorer) discountSubScore(discountPct int) float64 {
	cap := s.weights.DiscountCap
	if cap <= 0 {
		cap = 70
	}
	if discountPct <= 0 {
		return 0
	}
	return math.Min(float64(discountPct)/float64(cap)*100, 100)
}

func (s *Scorer) popularitySubScore(rank int) float64 {
	if rank <= 0 {
		return neutralSubScore
	}
	if rank == 1 {
		return 100
	}
	score := 100 * (1 - math.Log10(float64(rank))/math.Log10(worstRank))
	return math.Max(score, 0)
}

func (s *Scorer) qualitySubScore(rating float64, reviews int) float64 {
	rating = math.Max(0, math.Min(rating, 5))
	if reviews < 0 {
		reviews = 0
	}

	floor := s.weights.ReviewFloor
	if floor <= 0 {
		floor = 10
	}

	// Confidence grows with review volume; a 5-star listing with two reviews
	// must not outscore a 4.5-star listing with thousands.
	confidence := float64(reviews) / float64(reviews+floor)
	ratingScore := rating / 5 * 100
	return ratingScore*confidence + neutralSubScore*(1-confidence)
}

func clampScore(v float64) int {
	rounded := int(math.Round(v))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}
