package passes

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/preslaff/satellite-mission-control-simulation-system/internal/catalog"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/frames"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/metrics"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/sgp4"
)

// defaultStep is the sampling cadence across the prediction window.
const defaultStep = 10 * time.Second

// Request holds the parameters for a pass prediction sweep.
type Request struct {
	Observer     frames.Observer
	Sets         []catalog.ElementSet
	Start        time.Time
	Window       time.Duration
	Step         time.Duration // 0 = defaultStep
	MinElevation float64       // degrees
}

// SatellitePasses holds the predicted passes for one satellite.
type SatellitePasses struct {
	NoradID int         `json:"norad_id"`
	Passes  []PassEvent `json:"passes"`
	Error   string      `json:"error,omitempty"`
}

// Predict computes visibility passes for every element set in the request.
// Each satellite is processed in its own goroutine, bounded by a semaphore.
// Per-satellite failures land in the result's Error field rather than
// failing the batch.
func Predict(ctx context.Context, req Request) ([]SatellitePasses, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	results := make([]SatellitePasses, len(req.Sets))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, set := range req.Sets {
		wg.Add(1)
		go func(idx int, set catalog.ElementSet) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = SatellitePasses{NoradID: set.NoradID, Error: "cancelled"}
				return
			}

			events, err := predictOne(ctx, req, set)
			if err != nil {
				results[idx] = SatellitePasses{NoradID: set.NoradID, Error: err.Error()}
				return
			}
			results[idx] = SatellitePasses{NoradID: set.NoradID, Passes: events}
		}(i, set)
	}

	wg.Wait()
	return results, nil
}

func validateRequest(req Request) error {
	if req.Observer.LatDeg < -90 || req.Observer.LatDeg > 90 ||
		req.Observer.LonDeg < -180 || req.Observer.LonDeg > 180 {
		return &frames.MissingObserverError{
			Reason: fmt.Sprintf("latitude %.4f / longitude %.4f out of range", req.Observer.LatDeg, req.Observer.LonDeg),
		}
	}
	if req.Window <= 0 {
		return errors.New("prediction window must be positive")
	}
	return nil
}

// predictOne sweeps one satellite's elevation signal over the window at the
// fixed sampling step and feeds it through the detector. A kernel failure on
// a sample skips that sample without touching detector state.
func predictOne(ctx context.Context, req Request, set catalog.ElementSet) ([]PassEvent, error) {
	prop, err := sgp4.New(set)
	if err != nil {
		return nil, fmt.Errorf("kernel init: %w", err)
	}

	step := req.Step
	if step <= 0 {
		step = defaultStep
	}
	end := req.Start.Add(req.Window)

	detector := NewDetector(req.MinElevation)

	for t := req.Start; !t.After(end); t = t.Add(step) {
		if ctx.Err() != nil {
			break
		}

		pos, _, err := prop.StateAt(t)
		if err != nil {
			metrics.IncKernelCall("error")
			continue
		}
		metrics.IncKernelCall("success")

		_, la, err := frames.ToLocal(pos, req.Observer, t, false)
		if err != nil {
			return nil, err
		}

		detector.Observe(Sample{
			Time:         t,
			ElevationDeg: la.ElevationDeg,
			AzimuthDeg:   la.AzimuthDeg,
		})
	}

	return detector.Finish(), nil
}
