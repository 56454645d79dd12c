package matching

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/campusops/lostfound/internal/telemetry"
)

type fakeSource struct {
	items   []Item
	queries []CandidateQuery
}

func (f *fakeSource) Candidates(_ context.Context, q CandidateQuery) ([]Item, error) {
	f.queries = append(f.queries, q)
	out := make([]Item, 0, len(f.items))
	for _, it := range f.items {
		if it.Type == q.Type {
			out = append(out, it)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

type fakeSink struct {
	scores map[string]float64
}

func pairKey(lost, found int64) string { return fmt.Sprintf("%d:%d", lost, found) }

func (f *fakeSink) UpsertMatchScore(_ context.Context, lost, found int64, score float64) (float64, error) {
	if f.scores == nil {
		f.scores = map[string]float64{}
	}
	key := pairKey(lost, found)
	if prev, ok := f.scores[key]; ok && prev >= score {
		return prev, nil
	}
	f.scores[key] = score
	return score, nil
}

type fakeNotifier struct {
	events []MatchEvent
	err    error
}

func (f *fakeNotifier) MatchFound(_ context.Context, ev MatchEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

func itemDate(s string) *time.Time { return day(s) }

func lostWallet() Item {
	uid := int64(7)
	return Item{
		ID:             1,
		Type:           TypeLost,
		Title:          "Black Wallet",
		Description:    "leather, has ID cards",
		Location:       "Library",
		OccurredOn:     itemDate("2024-01-10"),
		ReportedAt:     time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
		Status:         StatusOpen,
		ReporterUserID: &uid,
	}
}

func foundWallet() Item {
	uid := int64(9)
	return Item{
		ID:             2,
		Type:           TypeFound,
		Title:          "Black leather wallet found",
		Description:    "found near library entrance",
		Location:       "Library",
		OccurredOn:     itemDate("2024-01-11"),
		ReportedAt:     time.Date(2024, 1, 11, 9, 0, 0, 0, time.UTC),
		Status:         StatusOpen,
		ReporterUserID: &uid,
	}
}

// filler found items with disjoint vocabulary so the shared IDF table gets
// a realistic corpus size without adding competing matches
func fillerFound(n int) []Item {
	texts := []struct{ title, desc string }{
		{"Red umbrella", "checkered pattern"},
		{"Silver keychain", "five keys attached"},
		{"Blue water bottle", "steel thermos"},
		{"Graphing calculator", "scientific model"},
		{"Green scarf", "wool knit"},
		{"White earbuds", "charging case included"},
		{"Laptop sticker sheet", "unused vinyl pack"},
		{"Orange notebook", "grid ruled pages"},
	}
	items := make([]Item, 0, n)
	for i := 0; i < n && i < len(texts); i++ {
		items = append(items, Item{
			ID:          int64(100 + i),
			Type:        TypeFound,
			Title:       texts[i].title,
			Description: texts[i].desc,
			Location:    "Gym",
			ReportedAt:  time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
			Status:      StatusOpen,
		})
	}
	return items
}

func TestRankEndToEndWalletScenario(t *testing.T) {
	t.Parallel()
	src := &fakeSource{items: append([]Item{foundWallet()}, fillerFound(8)...)}
	eng := &Engine{Source: src}

	pairs, err := eng.Rank(context.Background(), lostWallet(), 10, DefaultThreshold)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected exactly the wallet pair, got %d pairs", len(pairs))
	}
	p := pairs[0]
	if p.LostItemID != 1 || p.FoundItemID != 2 {
		t.Fatalf("wrong orientation: lost=%d found=%d", p.LostItemID, p.FoundItemID)
	}
	// exact location (+0.15) and 1-day proximity (+0.15) on top of real
	// text overlap pushes the pair past the 0.5 default threshold
	if p.Score < 50 || p.Score > 100 {
		t.Fatalf("score %v outside expected range (50,100]", p.Score)
	}
	// text similarity alone clears 0.3 with the shared IDF table
	docs := make([][]string, 0, len(src.items)+1)
	docs = append(docs, Tokenize(lostWallet().Text()))
	for _, it := range src.items {
		docs = append(docs, Tokenize(it.Text()))
	}
	idf := InverseDocFreq(docs)
	cos := Cosine(Vectorize(docs[0], idf), Vectorize(Tokenize(foundWallet().Text()), idf))
	if cos <= 0.3 {
		t.Fatalf("text similarity = %v, want > 0.3", cos)
	}
}

func TestRankDeterministic(t *testing.T) {
	t.Parallel()
	src := &fakeSource{items: append([]Item{foundWallet()}, fillerFound(5)...)}
	eng := &Engine{Source: src}

	first, err := eng.Rank(context.Background(), lostWallet(), 10, 0)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	second, err := eng.Rank(context.Background(), lostWallet(), 10, 0)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("ranking not deterministic:\n%v\n%v", first, second)
	}
}

func TestRankScoresBounded(t *testing.T) {
	t.Parallel()
	src := &fakeSource{items: append([]Item{foundWallet()}, fillerFound(8)...)}
	eng := &Engine{Source: src}

	pairs, err := eng.Rank(context.Background(), lostWallet(), 50, 0)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(pairs) == 0 {
		t.Fatal("expected candidates with threshold 0")
	}
	for _, p := range pairs {
		if p.Score < 0 || p.Score > 100 {
			t.Fatalf("score %v out of [0,100]", p.Score)
		}
	}
	for i := 1; i < len(pairs); i++ {
		if pairs[i].Score > pairs[i-1].Score {
			t.Fatalf("pairs not sorted descending at %d: %v > %v", i, pairs[i].Score, pairs[i-1].Score)
		}
	}
}

func TestRankThresholdInclusive(t *testing.T) {
	t.Parallel()
	// no text overlap, exact location, 1-day diff: score is exactly 0.30
	cand := Item{
		ID:         2,
		Type:       TypeFound,
		Title:      "umbrella",
		Location:   "Library",
		OccurredOn: itemDate("2024-01-11"),
		ReportedAt: time.Date(2024, 1, 11, 9, 0, 0, 0, time.UTC),
		Status:     StatusOpen,
	}
	base := Item{
		ID:         1,
		Type:       TypeLost,
		Title:      "wallet",
		Location:   "Library",
		OccurredOn: itemDate("2024-01-10"),
		ReportedAt: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
	}
	eng := &Engine{Source: &fakeSource{items: []Item{cand}}}

	at, err := eng.Rank(context.Background(), base, 10, 0.30)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(at) != 1 || math.Abs(at[0].Score-30.0) > 1e-9 {
		t.Fatalf("candidate at threshold must be included, got %v", at)
	}

	above, err := eng.Rank(context.Background(), base, 10, 0.3001)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(above) != 0 {
		t.Fatalf("candidate below threshold must be excluded, got %v", above)
	}
}

func TestRankCanonicalOrientationForFoundBase(t *testing.T) {
	t.Parallel()
	lost := lostWallet()
	lost.Type = TypeLost
	src := &fakeSource{items: []Item{lost}}
	eng := &Engine{Source: src}

	pairs, err := eng.Rank(context.Background(), foundWallet(), 10, 0)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].LostItemID != lost.ID {
		t.Fatalf("lostItemId = %d, want the lost item's id %d", pairs[0].LostItemID, lost.ID)
	}
	if pairs[0].FoundItemID != foundWallet().ID {
		t.Fatalf("foundItemId = %d, want the found item's id %d", pairs[0].FoundItemID, foundWallet().ID)
	}
}

func TestRankEmptyCandidatePool(t *testing.T) {
	t.Parallel()
	eng := &Engine{Source: &fakeSource{}}
	pairs, err := eng.Rank(context.Background(), lostWallet(), 10, 0)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("expected empty result, got %v", pairs)
	}
}

func TestRankZeroSignalBase(t *testing.T) {
	t.Parallel()
	src := &fakeSource{items: []Item{foundWallet()}}
	eng := &Engine{Source: src}
	pairs, err := eng.Rank(context.Background(), Item{ID: 1, Type: TypeLost}, 10, 0)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("zero-signal base must yield empty result, got %v", pairs)
	}
	if len(src.queries) != 0 {
		t.Fatalf("zero-signal base must not query candidates")
	}
}

func TestRankCandidateQueryWindow(t *testing.T) {
	t.Parallel()
	src := &fakeSource{items: []Item{foundWallet()}}
	eng := &Engine{Source: src}
	if _, err := eng.Rank(context.Background(), lostWallet(), 10, 0); err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(src.queries) != 1 {
		t.Fatalf("expected one candidate query, got %d", len(src.queries))
	}
	q := src.queries[0]
	if q.Type != TypeFound {
		t.Fatalf("candidate type = %s, want found", q.Type)
	}
	if q.Location != "Library" {
		t.Fatalf("location hint = %q, want Library", q.Location)
	}
	if q.Around == nil || !q.Around.Equal(*itemDate("2024-01-10")) {
		t.Fatalf("around = %v, want 2024-01-10", q.Around)
	}
	if q.Limit != DefaultPoolLimit {
		t.Fatalf("pool limit = %d, want %d", q.Limit, DefaultPoolLimit)
	}
}

func TestRankHonorsConfiguredPoolLimit(t *testing.T) {
	t.Parallel()
	src := &fakeSource{items: []Item{foundWallet()}}
	eng := &Engine{Source: src, PoolLimit: 37}
	if _, err := eng.Rank(context.Background(), lostWallet(), 10, 0); err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(src.queries) != 1 {
		t.Fatalf("expected one candidate query, got %d", len(src.queries))
	}
	if src.queries[0].Limit != 37 {
		t.Fatalf("pool limit = %d, want 37", src.queries[0].Limit)
	}
}

func TestScorePassRecordsMetrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	src := &fakeSource{items: append([]Item{foundWallet()}, fillerFound(4)...)}
	eng := &Engine{Source: src, Sink: &fakeSink{}, Metrics: telemetry.NewMatchingMetrics(reg)}

	if _, err := eng.MatchAndPersist(context.Background(), lostWallet(), DefaultThreshold, 200); err != nil {
		t.Fatalf("MatchAndPersist: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	seen := map[string]bool{}
	for _, mf := range families {
		seen[mf.GetName()] = true
		switch mf.GetName() {
		case "lostfound_matching_pass_duration_seconds":
			if n := mf.GetMetric()[0].GetHistogram().GetSampleCount(); n != 1 {
				t.Fatalf("pass duration observations = %d, want 1", n)
			}
		case "lostfound_matching_pairs_scored_total":
			if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 5 {
				t.Fatalf("pairs scored = %v, want 5", v)
			}
		case "lostfound_matching_matches_upserted_total":
			if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 1 {
				t.Fatalf("matches upserted = %v, want 1", v)
			}
		}
	}
	for _, name := range []string{
		"lostfound_matching_pass_duration_seconds",
		"lostfound_matching_pairs_scored_total",
		"lostfound_matching_matches_upserted_total",
	} {
		if !seen[name] {
			t.Fatalf("collector %s not gathered", name)
		}
	}
}

func TestMatchAndPersistUpsertsAndNotifies(t *testing.T) {
	t.Parallel()
	src := &fakeSource{items: append([]Item{foundWallet()}, fillerFound(8)...)}
	sink := &fakeSink{}
	notifier := &fakeNotifier{}
	eng := &Engine{Source: src, Sink: sink, Notifier: notifier}

	pairs, err := eng.MatchAndPersist(context.Background(), lostWallet(), DefaultThreshold, 200)
	if err != nil {
		t.Fatalf("MatchAndPersist: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 qualifying pair, got %d", len(pairs))
	}
	stored, ok := sink.scores[pairKey(1, 2)]
	if !ok {
		t.Fatal("match not persisted for pair (1,2)")
	}
	if stored != pairs[0].Score {
		t.Fatalf("stored score %v != reported %v", stored, pairs[0].Score)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("expected 1 notification event, got %d", len(notifier.events))
	}
	ev := notifier.events[0]
	if ev.LostItemID != 1 || ev.FoundItemID != 2 || ev.Score != pairs[0].Score {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestMatchAndPersistMonotonicScores(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	high, _ := sink.UpsertMatchScore(context.Background(), 1, 2, 70)
	if high != 70 {
		t.Fatalf("first upsert = %v, want 70", high)
	}
	after, _ := sink.UpsertMatchScore(context.Background(), 1, 2, 40)
	if after != 70 {
		t.Fatalf("lower score must not replace stored: got %v", after)
	}
	raised, _ := sink.UpsertMatchScore(context.Background(), 1, 2, 85)
	if raised != 85 {
		t.Fatalf("higher score must replace stored: got %v", raised)
	}
}

func TestMatchAndPersistNotifierFailureDoesNotAbort(t *testing.T) {
	t.Parallel()
	src := &fakeSource{items: append([]Item{foundWallet()}, fillerFound(8)...)}
	sink := &fakeSink{}
	notifier := &fakeNotifier{err: fmt.Errorf("sse bus down")}
	eng := &Engine{Source: src, Sink: sink, Notifier: notifier}

	pairs, err := eng.MatchAndPersist(context.Background(), lostWallet(), DefaultThreshold, 200)
	if err != nil {
		t.Fatalf("MatchAndPersist: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("notification failure must not drop the pair, got %d", len(pairs))
	}
	if _, ok := sink.scores[pairKey(1, 2)]; !ok {
		t.Fatal("match must persist despite notifier failure")
	}
}
