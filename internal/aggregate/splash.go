package aggregate

import (
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/molaperr"
)

// SplashMode selects how a write to a consolidated coordinate
// distributes across its base cells (spec.md §4.8).
type SplashMode int

const (
	// SplashEqual gives each base cell X/n*w_i, the default for a plain
	// "set to X" write.
	SplashEqual SplashMode = iota
	// SplashProportional scales each base cell by X/oldSum, preserving
	// relative distribution; requires a nonzero oldSum.
	SplashProportional
	// SplashAdditive adds delta*w_i/n to each base cell's current value.
	SplashAdditive
)

// Target is one base cell's contribution weight and current stored
// value, as required to compute its post-splash value.
type Target struct {
	Key    ids.Path
	Weight float64
	Old    float64
}

// Splash computes the new value for every target under mode, given the
// request value (the consolidated X for Equal/Proportional, or the
// delta for Additive). Returned values are positional with targets.
func Splash(mode SplashMode, targets []Target, value float64) ([]float64, error) {
	out := make([]float64, len(targets))

	n := 0.0
	for _, t := range targets {
		n += t.Weight
	}

	switch mode {
	case SplashEqual:
		if n == 0 {
			return out, nil
		}
		for i, t := range targets {
			out[i] = value / n * t.Weight
		}
	case SplashProportional:
		oldSum := 0.0
		for _, t := range targets {
			oldSum += t.Old
		}
		if oldSum == 0 {
			return nil, molaperr.Wrap(molaperr.KindPolicy, "Splash", molaperr.ErrSplashRejected)
		}
		factor := value / oldSum
		for i, t := range targets {
			out[i] = t.Old * factor
		}
	case SplashAdditive:
		if n == 0 {
			return out, nil
		}
		for i, t := range targets {
			out[i] = t.Old + value*t.Weight/n
		}
	default:
		return nil, molaperr.Wrap(molaperr.KindInput, "Splash", molaperr.ErrUnsupported)
	}
	return out, nil
}

// Decision is the outcome of checking a splash's cell count against the
// configured limit tiers.
type Decision int

const (
	// DecisionAllow: the splash proceeds silently.
	DecisionAllow Decision = iota
	// DecisionWarn: the splash proceeds but should be logged.
	DecisionWarn
	// DecisionReject: the splash is refused with SplashRejected.
	DecisionReject
)

// DecideSplash classifies a splash touching cellCount base cells against
// the three configured limits (spec.md §4.8 "splashLimit1 < 2 < 3
// controlling when a splash is allowed, warned, or rejected"; DESIGN.md
// resolves the Open Question on units as: allow at or below limit1, warn
// strictly between limit1 and limit3 — limit2 is the point within that
// warn band where the log level should escalate from info to warn, left
// to the caller — and reject at or above limit3).
func DecideSplash(cellCount int, limit1, limit2, limit3 int) Decision {
	switch {
	case cellCount <= limit1:
		return DecisionAllow
	case cellCount >= limit3:
		return DecisionReject
	default:
		return DecisionWarn
	}
}
