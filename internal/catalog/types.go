package catalog

import "time"

// ElementSet is one satellite's two-line orbital element set as fetched from
// the source. Immutable after creation; a newer fetch supersedes it rather
// than mutating it.
type ElementSet struct {
	NoradID   int       `json:"norad_id"`
	Name      string    `json:"name"`
	Line1     string    `json:"line1"`
	Line2     string    `json:"line2"`
	FetchedAt time.Time `json:"fetched_at"`
}

// GroupEntry is the cached element-set list for one named group. An entry is
// created on first successful fetch and replaced wholesale on every refresh,
// so the sets it holds always share a single fetch time.
type GroupEntry struct {
	Group       string       `json:"group"`
	Sets        []ElementSet `json:"element_sets"`
	RefreshedAt time.Time    `json:"refreshed_at"`
}

// Age returns how long ago the entry was refreshed.
func (e *GroupEntry) Age() time.Duration {
	return time.Since(e.RefreshedAt)
}
