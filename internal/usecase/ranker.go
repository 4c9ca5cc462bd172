package usecase

import (
	"sort"
	"time"

	"zenpress/internal/domain"
)

// RankerOptions tune the deterministic selection function.
type RankerOptions struct {
	TopK          int
	Window        time.Duration
	RecencyWeight float64
	Priority      float64
}

// Score computes the selection score for one article: the declared source
// priority plus a recency bonus proportional to the unexpired fraction of
// the window. Deterministic for a fixed now.
func Score(article domain.Article, now time.Time, opts RankerOptions) float64 {
	score := opts.Priority
	if opts.Window <= 0 || article.PublishedAt.IsZero() {
		return score
	}
	age := now.Sub(article.PublishedAt)
	if age < 0 {
		age = 0
	}
	if age >= opts.Window {
		return score
	}
	freshness := 1 - float64(age)/float64(opts.Window)
	return score + opts.RecencyWeight*freshness
}

// SelectTopK scores the candidates published within the window and
// returns the top-K, ordered by descending score with ties broken by
// earlier publication time. The returned articles carry their scores.
func SelectTopK(candidates []domain.Article, now time.Time, opts RankerOptions) []domain.Article {
	cutoff := now.Add(-opts.Window)

	scored := make([]domain.Article, 0, len(candidates))
	for _, article := range candidates {
		if opts.Window > 0 && article.PublishedAt.Before(cutoff) {
			continue
		}
		article.Score = Score(article, now, opts)
		scored = append(scored, article)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].PublishedAt.Before(scored[j].PublishedAt)
	})

	if opts.TopK > 0 && len(scored) > opts.TopK {
		scored = scored[:opts.TopK]
	}
	return scored
}
