package matching

import (
	"math"
	"testing"
	"time"
)

func day(s string) *time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &d
}

func TestLocationBonus(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"exact", "Library", "Library", 0.15},
		{"exact after normalization", "  library ", "LIBRARY", 0.15},
		{"substring", "Main Library", "library", 0.10},
		{"disjoint", "Gym", "Cafeteria", 0.0},
		{"left empty", "", "Library", 0.0},
		{"right empty", "Library", "   ", 0.0},
	}
	for _, tc := range cases {
		if got := LocationBonus(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: LocationBonus(%q,%q) = %v, want %v", tc.name, tc.a, tc.b, got, tc.want)
		}
	}
}

func TestDateBonusBands(t *testing.T) {
	t.Parallel()
	base := day("2024-01-10")
	cases := []struct {
		other string
		want  float64
	}{
		{"2024-01-10", 0.15}, // 0 days
		{"2024-01-11", 0.15}, // 1 day
		{"2024-01-13", 0.12}, // 3 days, band boundary
		{"2024-01-15", 0.10}, // 5 days
		{"2024-01-17", 0.10}, // 7 days, band boundary
		{"2024-01-20", 0.05}, // 10 days
		{"2024-01-24", 0.05}, // 14 days, band boundary
		{"2024-01-25", 0.0},  // 15 days, outside all bands
		{"2024-01-30", 0.0},  // 20 days
		{"2024-01-03", 0.10}, // 7 days earlier, absolute difference
	}
	for _, tc := range cases {
		if got := DateBonus(base, day(tc.other)); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("DateBonus(2024-01-10, %s) = %v, want %v", tc.other, got, tc.want)
		}
	}
}

func TestDateBonusMissingDates(t *testing.T) {
	t.Parallel()
	if got := DateBonus(nil, day("2024-01-10")); got != 0 {
		t.Fatalf("DateBonus(nil, d) = %v, want 0", got)
	}
	if got := DateBonus(day("2024-01-10"), nil); got != 0 {
		t.Fatalf("DateBonus(d, nil) = %v, want 0", got)
	}
}

func TestScorePairBounded(t *testing.T) {
	t.Parallel()
	docs := [][]string{
		Tokenize("black leather wallet id cards"),
		Tokenize("black leather wallet id cards"),
	}
	idf := InverseDocFreq(docs)
	// identical text + exact location + same day would exceed 1.0 unclamped
	got := ScorePair(
		"black leather wallet id cards", "black leather wallet id cards",
		"Library", "Library",
		day("2024-01-10"), day("2024-01-10"), idf,
	)
	if got != 1.0 {
		t.Fatalf("score = %v, want clamped 1.0", got)
	}
}

func TestScorePairNoTextOverlap(t *testing.T) {
	t.Parallel()
	docs := [][]string{Tokenize("umbrella"), Tokenize("wallet")}
	idf := InverseDocFreq(docs)
	got := ScorePair("umbrella", "wallet", "Library", "Library", day("2024-01-10"), day("2024-01-11"), idf)
	// pure metadata: 0.15 location + 0.15 date
	if math.Abs(got-0.30) > 1e-9 {
		t.Fatalf("score = %v, want 0.30", got)
	}
}

func TestScorePairEmptyText(t *testing.T) {
	t.Parallel()
	idf := InverseDocFreq([][]string{nil, nil})
	got := ScorePair("", "", "", "", nil, nil, idf)
	if got != 0 {
		t.Fatalf("score = %v, want 0", got)
	}
}

func TestScorePairRounding(t *testing.T) {
	t.Parallel()
	docs := [][]string{
		Tokenize("black wallet"),
		Tokenize("black wallet keys phone charger"),
	}
	idf := InverseDocFreq(docs)
	got := ScorePair("black wallet", "black wallet keys phone charger", "", "", nil, nil, idf)
	if got < 0 || got > 1 {
		t.Fatalf("score %v out of [0,1]", got)
	}
	if math.Abs(got*10000-math.Round(got*10000)) > 1e-9 {
		t.Fatalf("score %v not rounded to 4 decimals", got)
	}
}
