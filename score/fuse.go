// Package score fuses the three extracted features into a single
// periodicity score and applies the detection threshold.
package score

import (
	"github.com/activecm/beaconwatch/config"
	"github.com/activecm/beaconwatch/feature"
)

// Result is a fused score plus the (clipped) feature inputs that produced it.
type Result struct {
	PScore      float64
	FFTPeak     float64
	AutocorrMax float64
	EntropyNorm float64
	Detected    bool
}

// Fuse combines f under cfg's weights into a 0..1 periodicity score and
// compares it against the configured detection threshold. autocorr_max is
// clipped to [-1,1] here, not in feature.Extract, so diagnostics retain the
// raw value; its score term additionally floors it at 0, so a negative
// autocorrelation cannot pull the score below 0.
func Fuse(f feature.Features, cfg config.Scoring) Result {
	autocorr := clip(f.AutocorrMax, -1, 1)

	pScore := cfg.FFTPeakWeight*f.FFTPeak +
		cfg.AutocorrWeight*clip(autocorr, 0, 1) +
		cfg.EntropyWeight*(1.0-f.EntropyNorm)

	return Result{
		PScore:      pScore,
		FFTPeak:     f.FFTPeak,
		AutocorrMax: autocorr,
		EntropyNorm: f.EntropyNorm,
		Detected:    pScore > cfg.DetectionThreshold,
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
