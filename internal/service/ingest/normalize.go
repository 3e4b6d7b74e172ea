package ingest

import (
	"math"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
)

// Rule: one normalization step. Rules are pure and run in declaration order,
// so new rules append to the pipeline without touching existing ones.
type Rule struct {
	Name  string
	Apply func(domain.ViewMetricsSnapshot) domain.ViewMetricsSnapshot
}

// Pipeline: an ordered rule chain.
type Pipeline []Rule

// Run applies every rule in order.
func (p Pipeline) Run(s domain.ViewMetricsSnapshot) domain.ViewMetricsSnapshot {
	for _, rule := range p {
		s = rule.Apply(s)
	}
	return s
}

// DefaultPipeline: clamp -> derive -> round. Providers occasionally report
// negative counters after their own reconciliation; those clamp to zero and
// never propagate further into the pipeline.
func DefaultPipeline() Pipeline {
	return Pipeline{
		{
			Name: "clamp_non_negative",
			Apply: func(s domain.ViewMetricsSnapshot) domain.ViewMetricsSnapshot {
				if s.ViewCount < 0 {
					s.ViewCount = 0
				}
				if s.LikeCount < 0 {
					s.LikeCount = 0
				}
				if s.CommentCount < 0 {
					s.CommentCount = 0
				}
				if s.ShareCount < 0 {
					s.ShareCount = 0
				}
				return s
			},
		},
		{
			Name: "derive_engagement_rate",
			Apply: func(s domain.ViewMetricsSnapshot) domain.ViewMetricsSnapshot {
				if s.ViewCount == 0 {
					s.EngagementRate = 0
					return s
				}
				s.EngagementRate = float64(s.LikeCount+s.CommentCount+s.ShareCount) / float64(s.ViewCount)
				return s
			},
		},
		{
			Name: "round_derived_metrics",
			Apply: func(s domain.ViewMetricsSnapshot) domain.ViewMetricsSnapshot {
				s.EngagementRate = math.Round(s.EngagementRate*10000) / 10000
				return s
			},
		},
	}
}
