package ingest

import (
	"testing"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
)

func TestPipelineClampsNegativeCounts(t *testing.T) {
	out := DefaultPipeline().Run(domain.ViewMetricsSnapshot{
		ViewCount:    -5,
		LikeCount:    -1,
		CommentCount: 3,
		ShareCount:   -100,
	})

	if out.ViewCount != 0 || out.LikeCount != 0 || out.ShareCount != 0 {
		t.Errorf("negative counts survived: views=%d likes=%d shares=%d",
			out.ViewCount, out.LikeCount, out.ShareCount)
	}
	if out.CommentCount != 3 {
		t.Errorf("CommentCount = %d, want 3 untouched", out.CommentCount)
	}
}

func TestPipelineDerivesEngagementRate(t *testing.T) {
	out := DefaultPipeline().Run(domain.ViewMetricsSnapshot{
		ViewCount:    1000,
		LikeCount:    200,
		CommentCount: 50,
		ShareCount:   10,
	})

	if out.EngagementRate != 0.26 {
		t.Errorf("EngagementRate = %v, want 0.26", out.EngagementRate)
	}
}

func TestPipelineRoundsEngagementRate(t *testing.T) {
	out := DefaultPipeline().Run(domain.ViewMetricsSnapshot{
		ViewCount: 3,
		LikeCount: 1,
	})

	// 1/3 rounds to four decimal places.
	if out.EngagementRate != 0.3333 {
		t.Errorf("EngagementRate = %v, want 0.3333", out.EngagementRate)
	}
}

func TestPipelineZeroViewsZeroRate(t *testing.T) {
	out := DefaultPipeline().Run(domain.ViewMetricsSnapshot{
		ViewCount: 0,
		LikeCount: 50,
	})
	if out.EngagementRate != 0 {
		t.Errorf("EngagementRate = %v, want 0 with no views", out.EngagementRate)
	}
}

func TestPipelineNegativeViewsYieldZeroRate(t *testing.T) {
	// Clamp runs before derivation: a negative view count must not divide.
	out := DefaultPipeline().Run(domain.ViewMetricsSnapshot{
		ViewCount: -10,
		LikeCount: 5,
	})
	if out.ViewCount != 0 || out.EngagementRate != 0 {
		t.Errorf("views=%d rate=%v, want 0/0", out.ViewCount, out.EngagementRate)
	}
}
