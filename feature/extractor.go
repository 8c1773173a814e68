// Package feature turns a host's resampled byte-count time series into the
// three scalar features the scorer fuses into a periodicity score.
package feature

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/activecm/beaconwatch/database"
	"github.com/activecm/beaconwatch/logger"
)

const (
	minSamples   = 10
	maxLag       = 20
	histogramBins = 10
)

// Features holds the three signals the scorer fuses, plus the sample count
// they were computed over.
type Features struct {
	FFTPeak     float64
	AutocorrMax float64 // unclipped; score.Fuse clips to [-1,1]
	EntropyNorm float64
	SampleCount int
}

// Resample bins a host's window samples into 1-second buckets of summed
// response bytes, filling gaps with zero, mirroring a pandas
// `resample('1s').sum().fillna(0)` over [start, end).
func Resample(samples []database.WindowSample, start, end time.Time) []float64 {
	if !end.After(start) {
		return nil
	}
	numBuckets := int(end.Sub(start).Seconds())
	if numBuckets <= 0 {
		return nil
	}
	series := make([]float64, numBuckets)

	for _, s := range samples {
		offset := int(s.Ts.Sub(start).Seconds())
		if offset < 0 || offset >= numBuckets {
			continue
		}
		series[offset] += float64(s.RespBytes)
	}
	return series
}

// Extract computes fft_peak, autocorr_max, and entropy_norm over series,
// following the reference detector's exact edge-case behavior for short
// windows (N < 10). A NaN or infinite feature value is logged as a warning
// and replaced with 0.
func Extract(series []float64) Features {
	f := Features{SampleCount: len(series)}
	f.FFTPeak = fftPeak(series)
	f.AutocorrMax = autocorrMax(series)
	f.EntropyNorm = entropyNorm(series)

	for name, v := range map[string]*float64{"fft_peak": &f.FFTPeak, "autocorr_max": &f.AutocorrMax, "entropy_norm": &f.EntropyNorm} {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			zlog := logger.GetLogger()
			zlog.Warn().Str("feature", name).Msg("non-finite feature value coerced to 0")
			*v = 0
		}
	}
	return f
}

// fftPeak returns the ratio of the largest non-DC spectral magnitude to the
// largest magnitude overall (which, for a mostly-periodic series, is itself
// the DC or the peak frequency).
func fftPeak(series []float64) float64 {
	n := len(series)
	if n < minSamples {
		return 0.0
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, series)

	magnitude := make([]float64, len(coeffs))
	for i, c := range coeffs {
		magnitude[i] = (2.0 / float64(n)) * cmplxAbs(c)
	}

	if len(magnitude) <= 1 {
		return 0.0
	}

	maxOverall := magnitude[0]
	for _, m := range magnitude {
		if m > maxOverall {
			maxOverall = m
		}
	}
	if maxOverall <= 0 {
		return 0.0
	}

	peak := magnitude[1]
	for _, m := range magnitude[1:] {
		if m > peak {
			peak = m
		}
	}

	return peak / maxOverall
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// autocorrMax returns the largest value of the normalized, centered
// autocorrelation function over lags [1, min(20, N-1)). It is NOT clipped
// to [-1,1] here — score.Fuse does that so the raw value stays available
// for diagnostics.
func autocorrMax(series []float64) float64 {
	n := len(series)
	if n < minSamples {
		return 0.0
	}

	mean, err := stats.Mean(series)
	if err != nil {
		return 0.0
	}

	centered := make([]float64, n)
	for i, v := range series {
		centered[i] = v - mean
	}

	stddev, err := stats.StandardDeviation(centered)
	if err != nil || stddev == 0 {
		return 0.0
	}

	r0 := acvf(centered, 0)
	if r0 <= 0 {
		return 0.0
	}

	upperLag := maxLag
	if n-1 < upperLag {
		upperLag = n - 1
	}
	if upperLag < 1 {
		return 0.0
	}

	max := acvf(centered, 1) / r0
	for lag := 2; lag < upperLag; lag++ {
		v := acvf(centered, lag) / r0
		if v > max {
			max = v
		}
	}
	return max
}

// acvf computes the autocovariance of centered at the given lag.
func acvf(centered []float64, lag int) float64 {
	var sum float64
	for i := 0; i+lag < len(centered); i++ {
		sum += centered[i] * centered[i+lag]
	}
	return sum
}

// entropyNorm returns the Shannon entropy of a 10-bin density histogram of
// series, normalized by the log2 of the number of non-empty bins.
func entropyNorm(series []float64) float64 {
	if len(series) < minSamples {
		return 1.0
	}

	counts, binMin, binWidth := histogram(series, histogramBins)
	if binWidth == 0 {
		return 1.0
	}

	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 1.0
	}

	var nonEmpty int
	var entropy float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		nonEmpty++
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	if nonEmpty == 0 {
		return 1.0
	}

	maxEntropy := math.Log2(float64(nonEmpty))
	if maxEntropy <= 0 {
		return 0.0
	}

	_ = binMin
	return entropy / maxEntropy
}

// histogram buckets series into numBins equal-width bins spanning [min,max].
func histogram(series []float64, numBins int) ([]int, float64, float64) {
	min, max := series[0], series[0]
	for _, v := range series {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	width := (max - min) / float64(numBins)
	counts := make([]int, numBins)
	if width == 0 {
		counts[0] = len(series)
		return counts, min, 0
	}

	for _, v := range series {
		idx := int((v - min) / width)
		if idx >= numBins {
			idx = numBins - 1
		}
		counts[idx]++
	}
	return counts, min, width
}
