package rules

import (
	"slices"
	"sort"

	"github.com/dealpress/dealpress/app/deal"
)

// predicate is one independent match condition. A rule applies when every
// predicate passes; predicates treat unset rule fields as wildcards. New
// conditions are added to the predicates list, not as nested branches.
type predicate struct {
	name string
	ok   func(l deal.Listing, score int, r *Rule) bool
}

var predicates = []predicate{
	{"category", func(l deal.Listing, _ int, r *Rule) bool {
		if len(r.Match.Categories) == 0 {
			return true
		}
		return slices.Contains(r.Match.Categories, l.Category)
	}},
	{"min_price", func(l deal.Listing, _ int, r *Rule) bool {
		return r.Match.MinPrice == nil || l.Price >= *r.Match.MinPrice
	}},
	{"max_price", func(l deal.Listing, _ int, r *Rule) bool {
		return r.Match.MaxPrice == nil || l.Price <= *r.Match.MaxPrice
	}},
	{"min_score", func(_ deal.Listing, score int, r *Rule) bool {
		return r.Match.MinScore == nil || score >= *r.Match.MinScore
	}},
	{"min_rating", func(l deal.Listing, _ int, r *Rule) bool {
		if r.Match.MinRating == nil {
			return true
		}
		return l.Rating != nil && *l.Rating >= *r.Match.MinRating
	}},
	{"min_reviews", func(l deal.Listing, _ int, r *Rule) bool {
		if r.Match.MinReviews == nil {
			return true
		}
		return l.ReviewCount != nil && *l.ReviewCount >= *r.Match.MinReviews
	}},
}

type Matcher struct{}

func NewMatcher() *Matcher {
	return &Matcher{}
}

// Run returns every rule that applies to the scored listing, ordered by
// explicit priority, then by load order. An empty result is the common case
// and ends the pipeline for the listing. Multiple applicable rules all fire:
// a tenant may want the same deal published to different channel sets.
func (m *Matcher) Run(l deal.Listing, score int, candidates []*Rule) []*Rule {
	matched := make([]*Rule, 0)
	for _, rule := range candidates {
		if m.applies(l, score, rule) {
			matched = append(matched, rule)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		pi, pj := matched[i].EffectivePriority(), matched[j].EffectivePriority()
		if pi != pj {
			return pi < pj
		}
		return matched[i].LoadIndex < matched[j].LoadIndex
	})

	return matched
}

func (m *Matcher) applies(l deal.Listing, score int, rule *Rule) bool {
	for _, p := range predicates {
		if !p.ok(l, score, rule) {
			return false
		}
	}
	return true
}
