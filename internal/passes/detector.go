// Package passes turns a time series of observer-relative elevation angles
// into discrete visibility windows (rise/set pass events).
package passes

import "time"

// Sample is one elevation measurement from the sweep.
type Sample struct {
	Time         time.Time
	ElevationDeg float64
	AzimuthDeg   float64
}

// PassEvent describes one visibility window over an observer location.
// A window truncated by the end of the prediction horizon is not
// distinguished from a naturally completed one.
type PassEvent struct {
	RiseTime         time.Time `json:"rise_time"`
	RiseAzimuth      float64   `json:"rise_azimuth"`
	SetTime          time.Time `json:"set_time"`
	SetAzimuth       float64   `json:"set_azimuth"`
	MaxElevation     float64   `json:"max_elevation"`
	MaxElevationTime time.Time `json:"max_elevation_time"`
	DurationSeconds  float64   `json:"duration_seconds"`
}

// Detector is a two-state machine (idle / in-pass) over an elevation sample
// stream. Feed samples in time order with Observe; call Finish when the
// sweep ends to close a still-open pass and collect the events.
//
// A skipped sample (kernel failure mid-sweep) is simply not observed: it
// neither opens, extends, nor closes a pass.
type Detector struct {
	minElevation float64

	inPass bool
	rise   Sample
	peak   Sample
	last   Sample // most recent above-threshold sample

	events []PassEvent
}

// NewDetector creates a detector with the given visibility threshold in
// degrees. A threshold of 0 counts any non-negative elevation as visible.
func NewDetector(minElevationDeg float64) *Detector {
	return &Detector{minElevation: minElevationDeg}
}

// Observe advances the state machine by one sample.
func (d *Detector) Observe(s Sample) {
	above := s.ElevationDeg >= d.minElevation

	switch {
	case above && !d.inPass:
		// Rising: the pass opens at this sample.
		d.inPass = true
		d.rise = s
		d.peak = s
		d.last = s

	case above && d.inPass:
		// Strict greater-than: a tie keeps the earlier peak instant.
		if s.ElevationDeg > d.peak.ElevationDeg {
			d.peak = s
		}
		d.last = s

	case !above && d.inPass:
		// Setting: close with the previous sample, the last one still
		// above threshold.
		d.emit(d.last)
		d.inPass = false
	}
}

// Finish closes a window-truncated pass using the last above-threshold
// sample and returns all detected events. Zero passes is a valid result.
func (d *Detector) Finish() []PassEvent {
	if d.inPass {
		d.emit(d.last)
		d.inPass = false
	}
	return d.events
}

func (d *Detector) emit(set Sample) {
	d.events = append(d.events, PassEvent{
		RiseTime:         d.rise.Time,
		RiseAzimuth:      d.rise.AzimuthDeg,
		SetTime:          set.Time,
		SetAzimuth:       set.AzimuthDeg,
		MaxElevation:     d.peak.ElevationDeg,
		MaxElevationTime: d.peak.Time,
		DurationSeconds:  set.Time.Sub(d.rise.Time).Seconds(),
	})
}
