// Package sgp4 adapts the orbital propagation kernel. It wraps
// github.com/joshuaferrara/go-satellite behind a narrow interface that takes
// an element set and an instant and returns inertial position/velocity.
//
// The library is treated as a validated black box; this package only guards
// its input (it calls log.Fatal on malformed TLE lines) and classifies its
// failure modes into KernelError values.
package sgp4

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/preslaff/satellite-mission-control-simulation-system/internal/catalog"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/frames"
)

// Synthetic error codes for failures the library does not report itself.
const (
	// CodeNonFinite marks NaN/Inf output from the propagation step.
	CodeNonFinite = -1
	// CodeImplausible marks output with a physically unreasonable magnitude.
	CodeImplausible = -2
)

// KernelError is a propagation failure. Code is the SGP4 error code when the
// library reported one, or a synthetic code for output-validation failures.
type KernelError struct {
	NoradID int
	Code    int
	Msg     string
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("sgp4 kernel failure for NORAD %d: code=%d %s", e.NoradID, e.Code, e.Msg)
}

// Propagator computes instantaneous state for a single element set.
type Propagator struct {
	sat     satellite.Satellite
	noradID int
}

// New initializes an SGP4 propagator from an element set. Returns an error
// if the TLE fails shape validation or the model fails to initialize.
func New(set catalog.ElementSet) (*Propagator, error) {
	if err := validateLines(set.Line1, set.Line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", set.NoradID, err)
	}

	sat := satellite.TLEToSat(set.Line1, set.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, &KernelError{NoradID: set.NoradID, Code: int(sat.Error), Msg: sat.ErrorStr}
	}
	return &Propagator{sat: sat, noradID: set.NoradID}, nil
}

// validateLines performs basic format validation on TLE lines. This prevents
// passing garbage to go-satellite which calls log.Fatal on parse errors.
func validateLines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// StateAt computes the inertial position (km) and velocity (km/s) at the
// given instant, interpreted on the UTC timeline.
//
// The library propagates by value, so its internal error code is not visible
// after the call; failures are detected by validating the output instead.
func (p *Propagator) StateAt(t time.Time) (frames.Vector3, frames.Vector3, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if !finite(pos.X) || !finite(pos.Y) || !finite(pos.Z) ||
		!finite(vel.X) || !finite(vel.Y) || !finite(vel.Z) {
		return frames.Vector3{}, frames.Vector3{}, &KernelError{
			NoradID: p.noradID, Code: CodeNonFinite, Msg: "output is NaN/Inf",
		}
	}

	// Position magnitude for an Earth orbit should fall between ~6200 km
	// (decayed LEO) and ~50000 km (beyond GEO).
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200.0 || mag > 50000.0 {
		return frames.Vector3{}, frames.Vector3{}, &KernelError{
			NoradID: p.noradID, Code: CodeImplausible,
			Msg: fmt.Sprintf("unreasonable position magnitude %.1f km", mag),
		}
	}

	return frames.Vector3{X: pos.X, Y: pos.Y, Z: pos.Z},
		frames.Vector3{X: vel.X, Y: vel.Y, Z: vel.Z}, nil
}

// NoradID returns the catalog identifier this propagator was built for.
func (p *Propagator) NoradID() int {
	return p.noradID
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
