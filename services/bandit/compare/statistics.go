// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compare

import (
	"errors"
	"math"
	"sort"

	"github.com/AleutianAI/banditlab/services/bandit"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInsufficientSamples indicates not enough samples for analysis.
	ErrInsufficientSamples = errors.New("insufficient samples for statistical analysis")

	// ErrZeroVariance indicates both sample sets have zero variance.
	ErrZeroVariance = errors.New("sample set has zero variance")
)

// -----------------------------------------------------------------------------
// Welch's t-test
// -----------------------------------------------------------------------------

// TTestResult holds the results of a t-test.
type TTestResult struct {
	// TStatistic is the computed t-statistic.
	TStatistic float64 `json:"t_statistic"`

	// PValue is the two-tailed p-value.
	PValue float64 `json:"p_value"`

	// DegreesOfFreedom is the Welch-Satterthwaite df.
	DegreesOfFreedom float64 `json:"degrees_of_freedom"`

	// Significant is true if PValue < SignificanceLevel.
	Significant bool `json:"significant"`

	// SignificanceLevel is the alpha used (e.g., 0.05).
	SignificanceLevel float64 `json:"significance_level"`
}

// WelchTTest performs Welch's t-test for two sample sets.
//
// Description:
//
//	Welch's t-test does not assume equal population variances. The p-value
//	comes from the Student's t distribution with Welch-Satterthwaite
//	degrees of freedom.
//
// Inputs:
//   - samples1: First sample set. Must have at least 2 samples.
//   - samples2: Second sample set. Must have at least 2 samples.
//   - alpha: Significance level (e.g., 0.05 for 95% confidence).
//
// Outputs:
//   - *TTestResult: Test results with t-statistic, p-value, and significance.
//   - error: ErrInsufficientSamples or ErrZeroVariance.
//
// Thread Safety: This function is stateless and safe for concurrent use.
func WelchTTest(samples1, samples2 []float64, alpha float64) (*TTestResult, error) {
	if len(samples1) < 2 || len(samples2) < 2 {
		return nil, ErrInsufficientSamples
	}

	mean1, var1 := stat.MeanVariance(samples1, nil)
	mean2, var2 := stat.MeanVariance(samples2, nil)

	se, df, err := welchError(var1, var2, float64(len(samples1)), float64(len(samples2)))
	if err != nil {
		return nil, err
	}

	tStat := (mean1 - mean2) / se
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	pValue := 2 * tDist.Survival(math.Abs(tStat))

	return &TTestResult{
		TStatistic:        tStat,
		PValue:            pValue,
		DegreesOfFreedom:  df,
		Significant:       pValue < alpha,
		SignificanceLevel: alpha,
	}, nil
}

// welchError returns the standard error of the mean difference and the
// Welch-Satterthwaite degrees of freedom.
func welchError(var1, var2, n1, n2 float64) (se, df float64, err error) {
	a, b := var1/n1, var2/n2
	se = math.Sqrt(a + b)
	if se == 0 {
		return 0, 0, ErrZeroVariance
	}
	df = (a + b) * (a + b) / (a*a/(n1-1) + b*b/(n2-1))
	return se, df, nil
}

// -----------------------------------------------------------------------------
// Confidence Intervals
// -----------------------------------------------------------------------------

// ConfidenceInterval represents a statistical confidence interval.
type ConfidenceInterval struct {
	// Lower is the lower bound.
	Lower float64 `json:"lower"`

	// Upper is the upper bound.
	Upper float64 `json:"upper"`

	// Level is the confidence level (e.g., 0.95).
	Level float64 `json:"level"`

	// Center is the point estimate.
	Center float64 `json:"center"`
}

// Contains returns true if the interval contains the value.
func (ci *ConfidenceInterval) Contains(v float64) bool {
	return v >= ci.Lower && v <= ci.Upper
}

// Width returns the interval width.
func (ci *ConfidenceInterval) Width() float64 {
	return ci.Upper - ci.Lower
}

// CalculateCI calculates a confidence interval for mean1 - mean2.
//
// Description:
//
//	Uses Welch's method for unequal variances. When both sets have zero
//	variance the interval collapses to the point estimate.
//
// Inputs:
//   - samples1: First sample set. Must have at least 2 samples.
//   - samples2: Second sample set. Must have at least 2 samples.
//   - level: Confidence level in (0, 1), e.g. 0.95.
//
// Outputs:
//   - *ConfidenceInterval: The interval for mean1 - mean2.
//   - error: ErrInsufficientSamples.
func CalculateCI(samples1, samples2 []float64, level float64) (*ConfidenceInterval, error) {
	if len(samples1) < 2 || len(samples2) < 2 {
		return nil, ErrInsufficientSamples
	}

	mean1, var1 := stat.MeanVariance(samples1, nil)
	mean2, var2 := stat.MeanVariance(samples2, nil)
	diff := mean1 - mean2

	se, df, err := welchError(var1, var2, float64(len(samples1)), float64(len(samples2)))
	if err != nil {
		return &ConfidenceInterval{Lower: diff, Upper: diff, Level: level, Center: diff}, nil
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	margin := tDist.Quantile(1-(1-level)/2) * se

	return &ConfidenceInterval{
		Lower:  diff - margin,
		Upper:  diff + margin,
		Level:  level,
		Center: diff,
	}, nil
}

// BootstrapCI calculates a percentile bootstrap interval for mean1 - mean2.
//
// Description:
//
//	Resamples both sets with replacement nBootstrap times. Per-trial
//	regret is far from normal (mostly zeros late in a run), so this is the
//	interval to trust when the parametric one looks suspicious.
//
// Inputs:
//   - samples1, samples2: Sample sets. Each must have at least 2 samples.
//   - level: Confidence level in (0, 1).
//   - nBootstrap: Iterations. Values below 100 are raised to 100.
//   - src: Randomness for resampling. Nil uses a fixed seed.
//
// Outputs:
//   - *ConfidenceInterval: Bootstrap percentile interval.
//   - error: ErrInsufficientSamples.
func BootstrapCI(samples1, samples2 []float64, level float64, nBootstrap int, src bandit.Source) (*ConfidenceInterval, error) {
	if len(samples1) < 2 || len(samples2) < 2 {
		return nil, ErrInsufficientSamples
	}
	if nBootstrap < 100 {
		nBootstrap = 100
	}
	if src == nil {
		src = bandit.NewSource(12345)
	}

	diffs := make([]float64, nBootstrap)
	boot1 := make([]float64, len(samples1))
	boot2 := make([]float64, len(samples2))
	for i := range diffs {
		resample(boot1, samples1, src)
		resample(boot2, samples2, src)
		diffs[i] = stat.Mean(boot1, nil) - stat.Mean(boot2, nil)
	}
	sort.Float64s(diffs)

	alphaLower := (1 - level) / 2
	return &ConfidenceInterval{
		Lower:  stat.Quantile(alphaLower, stat.Empirical, diffs, nil),
		Upper:  stat.Quantile(1-alphaLower, stat.Empirical, diffs, nil),
		Level:  level,
		Center: stat.Mean(samples1, nil) - stat.Mean(samples2, nil),
	}, nil
}

func resample(dst, samples []float64, src bandit.Source) {
	for i := range dst {
		dst[i] = samples[src.IntN(len(samples))]
	}
}

// -----------------------------------------------------------------------------
// Effect Size
// -----------------------------------------------------------------------------

// EffectSize calculates Cohen's d with the pooled standard deviation.
//
// Outputs:
//   - float64: Cohen's d. Positive means samples1 has the larger mean.
//   - error: ErrInsufficientSamples or ErrZeroVariance.
func EffectSize(samples1, samples2 []float64) (float64, error) {
	if len(samples1) < 2 || len(samples2) < 2 {
		return 0, ErrInsufficientSamples
	}

	mean1, var1 := stat.MeanVariance(samples1, nil)
	mean2, var2 := stat.MeanVariance(samples2, nil)
	n1 := float64(len(samples1))
	n2 := float64(len(samples2))

	pooled := math.Sqrt(((n1-1)*var1 + (n2-1)*var2) / (n1 + n2 - 2))
	if pooled == 0 {
		return 0, ErrZeroVariance
	}
	return (mean1 - mean2) / pooled, nil
}

// EffectCategory categorizes effect sizes using Cohen's conventions.
type EffectCategory int

const (
	// EffectNegligible indicates |d| < 0.2
	EffectNegligible EffectCategory = iota
	// EffectSmall indicates 0.2 <= |d| < 0.5
	EffectSmall
	// EffectMedium indicates 0.5 <= |d| < 0.8
	EffectMedium
	// EffectLarge indicates |d| >= 0.8
	EffectLarge
)

// String returns the string representation.
func (e EffectCategory) String() string {
	switch e {
	case EffectNegligible:
		return "negligible"
	case EffectSmall:
		return "small"
	case EffectMedium:
		return "medium"
	case EffectLarge:
		return "large"
	default:
		return "unknown"
	}
}

// MarshalText encodes the category by name.
func (e EffectCategory) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// CategorizeEffect returns the category for a Cohen's d value.
func CategorizeEffect(d float64) EffectCategory {
	absD := math.Abs(d)
	switch {
	case absD < 0.2:
		return EffectNegligible
	case absD < 0.5:
		return EffectSmall
	case absD < 0.8:
		return EffectMedium
	default:
		return EffectLarge
	}
}

// RequiredTrials estimates the trials per run needed to detect effectSize
// at the given alpha and power with a two-sided test.
//
// Returns math.MaxInt32 for a zero effect.
func RequiredTrials(effectSize, alpha, power float64) int {
	if effectSize == 0 {
		return math.MaxInt32
	}
	unit := distuv.UnitNormal
	zAlpha := unit.Quantile(1 - alpha/2)
	zPower := unit.Quantile(power)
	n := 2 * math.Pow((zAlpha+zPower)/effectSize, 2)
	return int(math.Ceil(n)) + 1
}
