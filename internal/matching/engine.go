package matching

import (
	"context"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/campusops/lostfound/internal/telemetry"
)

// Defaults mirror the candidate windowing and threshold the HTTP layer
// applies when the caller does not override them.
const (
	DefaultThreshold = 0.5
	DefaultPoolLimit = 400
	DefaultRankLimit = 10
)

// CandidateQuery describes the bounded, pre-filtered pool of opposite-type
// items considered for one scoring pass.
type CandidateQuery struct {
	Type     ItemType   // candidate side (opposite of the base item)
	Location string     // optional substring hint, case-insensitive
	Around   *time.Time // optional reference date, ±30 day window
	Limit    int        // pool cap; <=0 means DefaultPoolLimit
}

// ItemSource supplies candidate items. Implementations must restrict
// results to open/matched items, newest reported first, capped at Limit.
type ItemSource interface {
	Candidates(ctx context.Context, q CandidateQuery) ([]Item, error)
}

// MatchSink persists qualifying pairs. UpsertMatchScore records a 0–100
// percentage score for the pair, keeping the higher of the stored and new
// score for pending matches, and returns the score now stored.
type MatchSink interface {
	UpsertMatchScore(ctx context.Context, lostItemID, foundItemID int64, score float64) (float64, error)
}

// MatchEvent describes a newly-qualifying pair for notification fan-out.
type MatchEvent struct {
	LostItemID  int64
	FoundItemID int64
	Score       float64 // percentage, 2 decimals
	Base        Item
	Candidate   Item
}

// Notifier delivers best-effort match notifications. Errors are logged by
// the engine and never abort the pass.
type Notifier interface {
	MatchFound(ctx context.Context, ev MatchEvent) error
}

// Pair is one ranked result. Orientation is canonical: LostItemID is always
// the lost-side item regardless of which side was the base.
type Pair struct {
	LostItemID  int64   `json:"lostItemId"`
	FoundItemID int64   `json:"foundItemId"`
	Score       float64 `json:"score"`
	Candidate   Item    `json:"-"`
}

// Engine runs one synchronous scoring pass per call: fetch candidates,
// build one shared IDF table over base+candidates, score each candidate,
// and rank. No state survives between calls.
type Engine struct {
	Source   ItemSource
	Sink     MatchSink
	Notifier Notifier
	Logger   *log.Logger
	Metrics  *telemetry.MatchingMetrics

	// PoolLimit caps the candidate pool per pass; <=0 means DefaultPoolLimit.
	PoolLimit int
}

// Rank computes the ranked candidate list for a base item without
// persisting anything. Location and date hints ride on the base item
// itself; free-text queries pass a synthetic base. The threshold is an
// inclusive lower bound; limit <=0 falls back to DefaultRankLimit.
func (e *Engine) Rank(ctx context.Context, base Item, limit int, threshold float64) ([]Pair, error) {
	pairs, err := e.scorePass(ctx, base, e.PoolLimit, threshold)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRankLimit
	}
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs, nil
}

// MatchAndPersist ranks candidates like Rank and additionally upserts a
// Match row for every qualifying pair, then emits one notification event
// per pair. Persistence and notification failures are logged per pair and
// never abort the pass.
func (e *Engine) MatchAndPersist(ctx context.Context, base Item, threshold float64, poolLimit int) ([]Pair, error) {
	pairs, err := e.scorePass(ctx, base, poolLimit, threshold)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		if e.Sink != nil {
			if _, err := e.Sink.UpsertMatchScore(ctx, p.LostItemID, p.FoundItemID, p.Score); err != nil {
				e.logf("match upsert (%d,%d): %v", p.LostItemID, p.FoundItemID, err)
				continue
			}
			if e.Metrics != nil {
				e.Metrics.MatchesUpserted.Inc()
			}
		}
		if e.Notifier != nil {
			ev := MatchEvent{
				LostItemID:  p.LostItemID,
				FoundItemID: p.FoundItemID,
				Score:       p.Score,
				Base:        base,
				Candidate:   p.Candidate,
			}
			if err := e.Notifier.MatchFound(ctx, ev); err != nil {
				e.logf("match notify (%d,%d): %v", p.LostItemID, p.FoundItemID, err)
			}
		}
	}
	return pairs, nil
}

// scorePass is the shared core of Rank and MatchAndPersist. A base item
// with no text, no location and no date has nothing to score on and yields
// an empty result rather than an error.
func (e *Engine) scorePass(ctx context.Context, base Item, poolLimit int, threshold float64) ([]Pair, error) {
	if e.Metrics != nil {
		start := time.Now()
		defer func() { e.Metrics.PassDuration.Observe(time.Since(start).Seconds()) }()
	}
	baseText := base.Text()
	if baseText == "" && strings.TrimSpace(base.Location) == "" {
		if _, ok := base.Date(); !ok {
			return nil, nil
		}
	}
	if poolLimit <= 0 {
		poolLimit = DefaultPoolLimit
	}

	var around *time.Time
	if d, ok := base.Date(); ok {
		around = &d
	}
	candidates, err := e.Source.Candidates(ctx, CandidateQuery{
		Type:     base.Type.Opposite(),
		Location: base.Location,
		Around:   around,
		Limit:    poolLimit,
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// One IDF table over base + all candidates, reused for every pairwise
	// comparison so scores stay comparable within the pass.
	docs := make([][]string, 0, len(candidates)+1)
	docs = append(docs, Tokenize(baseText))
	for _, c := range candidates {
		docs = append(docs, Tokenize(c.Text()))
	}
	idf := InverseDocFreq(docs)

	pairs := make([]Pair, 0, len(candidates))
	for _, cand := range candidates {
		var candDate *time.Time
		if d, ok := cand.Date(); ok {
			candDate = &d
		}
		s := ScorePair(baseText, cand.Text(), base.Location, cand.Location, around, candDate, idf)
		if e.Metrics != nil {
			e.Metrics.PairsScored.Inc()
		}
		if s < threshold {
			continue
		}
		lostID, foundID := base.ID, cand.ID
		if base.Type == TypeFound {
			lostID, foundID = cand.ID, base.ID
		}
		pairs = append(pairs, Pair{
			LostItemID:  lostID,
			FoundItemID: foundID,
			Score:       toPercent(s),
			Candidate:   cand,
		})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Score > pairs[j].Score })
	return pairs, nil
}

// toPercent converts a [0,1] score to a 0–100 percentage with 2 decimals.
func toPercent(s float64) float64 {
	return math.Round(s*100*100) / 100
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}
