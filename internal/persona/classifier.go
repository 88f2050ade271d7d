package persona

import (
	"github.com/ashureev/credpilot/internal/domain"
)

// Default is returned when no rule matches, which includes profiles whose
// credit score is missing or not numeric.
const Default = Persona7

type rule struct {
	match  func(m domain.Metrics) bool
	result ID
}

// between reports lo <= v <= hi for a valid metric.
func between(v domain.Metric, lo, hi int) bool {
	return v.Valid && v.Value >= lo && v.Value <= hi
}

func above(v domain.Metric, n int) bool { return v.Valid && v.Value > n }

func below(v domain.Metric, n int) bool { return v.Valid && v.Value < n }

func atLeast(v domain.Metric, n int) bool { return v.Valid && v.Value >= n }

// rules are evaluated in order and the first match wins.
var rules = []rule{
	{func(m domain.Metrics) bool { return below(m.Score, 650) }, Persona1},
	{func(m domain.Metrics) bool { return between(m.Score, 650, 720) && above(m.FOIR, 55) }, Persona2},
	{func(m domain.Metrics) bool { return between(m.Score, 720, 750) && above(m.Utilization, 80) }, Persona3},
	{func(m domain.Metrics) bool { return between(m.Score, 750, 800) && above(m.FOIR, 55) }, Persona10},
	{func(m domain.Metrics) bool { return atLeast(m.Score, 750) && above(m.Utilization, 80) }, Persona9},
	{func(m domain.Metrics) bool { return between(m.Score, 750, 800) }, Persona4},
	{func(m domain.Metrics) bool { return above(m.Score, 800) }, Persona6},
	// Unreachable: shadowed by the two rules above.
	{func(m domain.Metrics) bool { return above(m.Score, 800) && above(m.Utilization, 80) }, Persona9},
}

// Classify selects the persona for a profile. It is a pure function of the
// credit score, FOIR and utilization fields.
func Classify(p domain.CreditProfile) ID {
	return ClassifyMetrics(p.Metrics())
}

// ClassifyMetrics applies the rule table to already parsed metrics.
func ClassifyMetrics(m domain.Metrics) ID {
	for _, r := range rules {
		if r.match(m) {
			return r.result
		}
	}
	return Default
}

// ForProfile classifies p and returns the full descriptor.
func ForProfile(p domain.CreditProfile) Persona {
	desc, _ := Lookup(Classify(p))
	return desc
}
