package correlation

import "math"

// Abramowitz and Stegun formula 7.1.26 for erf, max error about 1.5e-7.
const (
	erfA1 = 0.254829592
	erfA2 = -0.284496736
	erfA3 = 1.421413741
	erfA4 = -1.453152027
	erfA5 = 1.061405429
	erfP  = 0.3275911
)

// PairStatistics are the numeric fields derived from a PairObservation.
type PairStatistics struct {
	Coefficient            float64
	PValue                 float64
	ConfidenceLower        float64
	ConfidenceUpper        float64
	AverageDelayHours      float64
	DelayStandardDeviation float64
	AverageSeverity        float64
}

// Calculate derives the statistics for obs using z for the confidence interval.
//
// The coefficient is occurrenceRate - baselineRate. The p-value comes from a
// normal approximation of a one-sample binomial test against the baseline
// rate; it is 1 when the baseline rate is exactly 0 or 1, however large the
// coefficient. The interval is a Wald interval around the coefficient and is
// not clamped to [-1,1].
func Calculate(obs PairObservation, z float64) PairStatistics {
	coefficient := obs.OccurrenceRate - obs.BaselineRate
	lower, upper := waldInterval(coefficient, obs.OccurrenceRate, obs.SampleSize, z)

	return PairStatistics{
		Coefficient:            coefficient,
		PValue:                 binomialPValue(obs.OccurrenceRate, obs.BaselineRate, obs.SampleSize),
		ConfidenceLower:        lower,
		ConfidenceUpper:        upper,
		AverageDelayHours:      mean(obs.Delays),
		DelayStandardDeviation: sampleStdDev(obs.Delays),
		AverageSeverity:        mean(obs.Severities),
	}
}

func binomialPValue(occurrenceRate, baselineRate float64, sampleSize int) float64 {
	if sampleSize <= 0 {
		return 1
	}
	standardError := math.Sqrt(baselineRate * (1 - baselineRate) / float64(sampleSize))
	if standardError == 0 {
		return 1
	}
	zScore := math.Abs(occurrenceRate-baselineRate) / standardError
	return clampUnit(2 * (1 - normalCDF(zScore)))
}

func waldInterval(coefficient, occurrenceRate float64, sampleSize int, z float64) (float64, float64) {
	if sampleSize <= 0 {
		return coefficient, coefficient
	}
	se := math.Sqrt(occurrenceRate * (1 - occurrenceRate) / float64(sampleSize))
	return coefficient - z*se, coefficient + z*se
}

func normalCDF(x float64) float64 {
	return 0.5 * (1 + erf(x/math.Sqrt2))
}

func erf(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1
	}
	x = math.Abs(x)

	t := 1 / (1 + erfP*x)
	y := 1 - ((((erfA5*t+erfA4)*t+erfA3)*t+erfA2)*t+erfA1)*t*math.Exp(-x*x)
	return sign * y
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev is the Bessel-corrected standard deviation; 0 below two values.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - m
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}
