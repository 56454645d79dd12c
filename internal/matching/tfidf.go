package matching

import "math"

// Vector is a sparse term-weight mapping. Terms absent from a document are
// implicitly zero and never stored.
type Vector map[string]float64

// TermFrequency returns per-term occurrence counts divided by document
// length. A zero-token document is treated as length 1 so the division is
// always defined.
func TermFrequency(tokens []string) Vector {
	total := float64(len(tokens))
	if total == 0 {
		total = 1
	}
	freq := make(Vector, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	for t, n := range freq {
		freq[t] = n / total
	}
	return freq
}

// InverseDocFreq computes smoothed IDF weights over a corpus of token
// sequences: ln((N+1)/(df+1)) + 1. The smoothing keeps every weight
// strictly positive, even for terms present in all documents.
func InverseDocFreq(docs [][]string) map[string]float64 {
	n := float64(len(docs))
	if n == 0 {
		n = 1
	}
	df := make(map[string]int)
	for _, tokens := range docs {
		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}
	idf := make(map[string]float64, len(df))
	for t, d := range df {
		idf[t] = math.Log((n+1)/float64(d+1)) + 1.0
	}
	return idf
}

// Vectorize weights a document's term frequencies by the shared IDF table.
// Terms missing from the table fall back to weight 1.
func Vectorize(tokens []string, idf map[string]float64) Vector {
	tf := TermFrequency(tokens)
	for t, f := range tf {
		w, ok := idf[t]
		if !ok {
			w = 1.0
		}
		tf[t] = f * w
	}
	return tf
}

// Cosine returns the cosine similarity of two sparse vectors, or 0 when
// either has zero magnitude.
func Cosine(a, b Vector) float64 {
	var dot float64
	for t, av := range a {
		if bv, ok := b[t]; ok {
			dot += av * bv
		}
	}
	var na, nb float64
	for _, v := range a {
		na += v * v
	}
	for _, v := range b {
		nb += v * v
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
