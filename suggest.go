package main

import (
	"math"
	"sort"
	"strings"

	"github.com/jbrukh/bayesian"
)

// prepareDescriptionForClassification lowercases a description, drops noise
// characters and splits it into terms.
func prepareDescriptionForClassification(desc string) []string {
	desc = strings.ToLower(desc)
	desc = strings.NewReplacer("*", " ", "\"", " ", "'", " ", "-", " ").Replace(desc)
	return strings.Fields(desc)
}

// suggester ranks categories for a merchant description, trained on the
// merchants the user already categorized.
type suggester struct {
	classes []bayesian.Class
	cl      *bayesian.Classifier
}

// newSuggester returns nil when there are fewer than two categories to learn
// from.
func newSuggester(examples map[string]string) *suggester {
	tomap := make(map[string]bool)
	for _, cat := range examples {
		if cat != "" {
			tomap[cat] = true
		}
	}
	if len(tomap) < 2 {
		return nil
	}
	s := &suggester{classes: make([]bayesian.Class, 0, len(tomap))}
	for cat := range tomap {
		s.classes = append(s.classes, bayesian.Class(cat))
	}
	sort.Slice(s.classes, func(i, j int) bool { return s.classes[i] < s.classes[j] })

	s.cl = bayesian.NewClassifierTfIdf(s.classes...)
	assertf(s.cl != nil, "Expected a valid classifier. Found nil.")
	for desc, cat := range examples {
		terms := prepareDescriptionForClassification(desc)
		if cat == "" || len(terms) == 0 {
			continue
		}
		s.cl.Learn(terms, bayesian.Class(cat))
	}
	s.cl.ConvertTermsFreqToTfIdf()
	return s
}

type pair struct {
	score float64
	pos   int
}

type byScore []pair

func (b byScore) Len() int               { return len(b) }
func (b byScore) Less(i int, j int) bool { return b[i].score > b[j].score }
func (b byScore) Swap(i int, j int)      { b[i], b[j] = b[j], b[i] }

// topHits returns up to n categories, stopping once the score drops by
// more than a standard deviation from the previous hit.
func (s *suggester) topHits(desc string, n int) []string {
	if s == nil {
		return nil
	}
	terms := prepareDescriptionForClassification(desc)
	scores, _, _ := s.cl.LogScores(terms)
	pairs := make([]pair, 0, len(scores))

	var mean, stddev float64
	for pos, score := range scores {
		pairs = append(pairs, pair{score, pos})
		mean += score
	}
	mean /= float64(len(scores))
	for _, score := range scores {
		diff := score - mean
		stddev += diff * diff
	}
	stddev /= float64(len(scores) - 1)
	stddev = math.Sqrt(stddev)

	sort.Stable(byScore(pairs))
	result := make([]string, 0, n)
	last := pairs[0].score
	for i := 0; i < len(pairs) && i < n; i++ {
		pr := pairs[i]
		if math.Abs(pr.score-last) > stddev {
			break
		}
		result = append(result, string(s.classes[pr.pos]))
		last = pr.score
	}
	return result
}
