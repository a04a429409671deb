package model

import "time"

// Snapshot gathers whatever records are known for one username.
type Snapshot struct {
	Username    string        `json:"username"`
	Stats       *UserStats    `json:"stats,omitempty"`
	Calendar    *UserCalendar `json:"calendar,omitempty"`
	Profile     *UserProfile  `json:"profile,omitempty"`
	LastFetched *time.Time    `json:"lastFetched,omitempty"`
}

// Empty reports whether no record is present.
func (s Snapshot) Empty() bool {
	return s.Stats == nil && s.Calendar == nil && s.Profile == nil
}

// PeerStats is one row of a peer comparison.
type PeerStats struct {
	Username  string     `json:"username"`
	Stats     *UserStats `json:"stats,omitempty"`
	Available bool       `json:"available"`
}
