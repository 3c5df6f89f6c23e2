// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stats computes the statistical results the stats agent reports:
// per-group descriptives, pairwise Welch comparisons and fixed-effect
// inverse-variance pooling of study effects.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pdiddy/medpaper/pkg/types"
)

// ErrNoData is returned when the dataset carries no observations.
var ErrNoData = errors.New("dataset has no observations")

// Confidence is the two-sided confidence level of every interval.
const Confidence = 0.95

// Analyze computes descriptives for every group, a Welch comparison for
// every pair of groups, and a pooled estimate when study effects are given.
func Analyze(ds *types.Dataset) (*types.StatsReport, error) {
	if ds.Empty() {
		return nil, ErrNoData
	}

	report := &types.StatsReport{Outcome: ds.Outcome}
	for _, g := range ds.Groups {
		if len(g.Values) == 0 {
			return nil, fmt.Errorf("group %q has no values", g.Name)
		}
		report.Groups = append(report.Groups, Describe(g))
	}

	for i := 0; i < len(ds.Groups); i++ {
		for j := i + 1; j < len(ds.Groups); j++ {
			c, err := Compare(ds.Groups[i], ds.Groups[j])
			if err != nil {
				return nil, err
			}
			report.Comparisons = append(report.Comparisons, c)
		}
	}

	if len(ds.Studies) > 0 {
		p, err := Pool(ds.Studies)
		if err != nil {
			return nil, err
		}
		report.Pooled = &p
	}

	report.Summary = Summarize(report)
	return report, nil
}

// Describe returns n, mean, sample standard deviation, median and range.
func Describe(g types.Group) types.GroupSummary {
	s := types.GroupSummary{Name: g.Name, N: len(g.Values)}
	if s.N == 0 {
		return s
	}
	sorted := append([]float64(nil), g.Values...)
	sort.Float64s(sorted)

	s.Mean = stat.Mean(sorted, nil)
	if s.N > 1 {
		s.SD = stat.StdDev(sorted, nil)
	}
	s.Median = median(sorted)
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	return s
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Compare runs a Welch two-sample comparison of a minus b. Both groups need
// at least two values.
func Compare(a, b types.Group) (types.Comparison, error) {
	if len(a.Values) < 2 || len(b.Values) < 2 {
		return types.Comparison{}, fmt.Errorf("comparing %q and %q: each group needs at least 2 values", a.Name, b.Name)
	}
	na, nb := float64(len(a.Values)), float64(len(b.Values))
	ma, va := stat.MeanVariance(a.Values, nil)
	mb, vb := stat.MeanVariance(b.Values, nil)

	c := types.Comparison{
		Groups:         [2]string{a.Name, b.Name},
		MeanDifference: ma - mb,
	}

	se2a, se2b := va/na, vb/nb
	se := math.Sqrt(se2a + se2b)
	if se == 0 {
		// Both groups are constant: the difference is exact.
		c.CILower, c.CIUpper = c.MeanDifference, c.MeanDifference
		c.DF = na + nb - 2
		return c, nil
	}

	c.TStatistic = c.MeanDifference / se
	c.DF = (se2a + se2b) * (se2a + se2b) /
		(se2a*se2a/(na-1) + se2b*se2b/(nb-1))

	crit := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: c.DF}.Quantile(1 - (1-Confidence)/2)
	c.CILower = c.MeanDifference - crit*se
	c.CIUpper = c.MeanDifference + crit*se

	pooledSD := math.Sqrt(((na-1)*va + (nb-1)*vb) / (na + nb - 2))
	if pooledSD > 0 {
		c.CohensD = c.MeanDifference / pooledSD
	}
	return c, nil
}

// Pool combines study effects with fixed-effect inverse-variance weights and
// reports Cochran's Q and I².
func Pool(studies []types.StudyEffect) (types.PooledEstimate, error) {
	if len(studies) == 0 {
		return types.PooledEstimate{}, ErrNoData
	}
	effects := make([]float64, len(studies))
	weights := make([]float64, len(studies))
	for i, s := range studies {
		if s.StandardError <= 0 {
			return types.PooledEstimate{}, fmt.Errorf("study %q: standard error must be positive", s.Study)
		}
		effects[i] = s.Effect
		weights[i] = 1 / (s.StandardError * s.StandardError)
	}

	effect := stat.Mean(effects, weights)
	sumW := 0.0
	q := 0.0
	for i := range effects {
		sumW += weights[i]
		d := effects[i] - effect
		q += weights[i] * d * d
	}
	se := math.Sqrt(1 / sumW)
	z := distuv.UnitNormal.Quantile(1 - (1-Confidence)/2)

	p := types.PooledEstimate{
		Studies:       len(studies),
		Effect:        effect,
		StandardError: se,
		CILower:       effect - z*se,
		CIUpper:       effect + z*se,
		Q:             q,
	}
	if df := float64(len(studies) - 1); q > df && q > 0 {
		p.ISquared = (q - df) / q
	}
	return p, nil
}

// Summarize renders the report as a short results paragraph.
func Summarize(r *types.StatsReport) string {
	var b strings.Builder
	outcome := r.Outcome
	if outcome == "" {
		outcome = "the outcome"
	}
	for _, g := range r.Groups {
		fmt.Fprintf(&b, "%s (n=%d): mean %s %.2f (SD %.2f), median %.2f [%.2f, %.2f]. ",
			g.Name, g.N, outcome, g.Mean, g.SD, g.Median, g.Min, g.Max)
	}
	for _, c := range r.Comparisons {
		fmt.Fprintf(&b, "%s vs %s: mean difference %.2f (95%% CI %.2f to %.2f; t=%.2f, df=%.1f; d=%.2f). ",
			c.Groups[0], c.Groups[1], c.MeanDifference, c.CILower, c.CIUpper, c.TStatistic, c.DF, c.CohensD)
	}
	if p := r.Pooled; p != nil {
		fmt.Fprintf(&b, "Pooled effect across %d studies: %.2f (95%% CI %.2f to %.2f); Q=%.2f, I²=%.0f%%.",
			p.Studies, p.Effect, p.CILower, p.CIUpper, p.Q, p.ISquared*100)
	}
	return strings.TrimSpace(b.String())
}
