package matching

import (
	"math"
	"strings"
	"time"
)

// Score composition: cosine text similarity is capped at 0.7 of the total,
// leaving up to 0.3 for corroborating location and date metadata.
const (
	textWeight = 0.7

	locExactBonus  = 0.15
	locSubstrBonus = 0.10
)

// date-proximity bands, tightest match wins
var dateBands = []struct {
	maxDays int
	bonus   float64
}{
	{1, 0.15},
	{3, 0.12},
	{7, 0.10},
	{14, 0.05},
}

func normalizeLocation(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LocationBonus rewards matching locations after trim/lowercase
// normalization. Either side empty skips the bonus entirely.
func LocationBonus(a, b string) float64 {
	na := normalizeLocation(a)
	nb := normalizeLocation(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return locExactBonus
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return locSubstrBonus
	}
	return 0
}

// DateBonus rewards temporal proximity of two resolved dates. Nil on either
// side yields no bonus.
func DateBonus(a, b *time.Time) float64 {
	if a == nil || b == nil {
		return 0
	}
	diff := int(math.Abs(truncateToDate(*a).Sub(truncateToDate(*b)).Hours()) / 24)
	for _, band := range dateBands {
		if diff <= band.maxDays {
			return band.bonus
		}
	}
	return 0
}

// ScorePair combines text similarity with location and date bonuses into a
// single score in [0,1], rounded to 4 decimal places. The IDF table must be
// the one shared across the whole matching pass so candidate scores stay
// comparable.
func ScorePair(baseText, candText, baseLoc, candLoc string, baseDate, candDate *time.Time, idf map[string]float64) float64 {
	v1 := Vectorize(Tokenize(baseText), idf)
	v2 := Vectorize(Tokenize(candText), idf)

	score := textWeight*Cosine(v1, v2) + LocationBonus(baseLoc, candLoc) + DateBonus(baseDate, candDate)
	if score > 1.0 {
		score = 1.0
	}
	return math.Round(score*10000) / 10000
}
