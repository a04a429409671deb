package model

import "time"

// RefreshJob asks a worker to run cache-or-fetch for one username.
type RefreshJob struct {
	Username   string    // subject of the refresh
	Force      bool      // bypass the freshness policy
	Profile    bool      // also refresh the profile kind
	EnqueuedAt time.Time // when the scheduler queued the job
}

// Key identifies pending jobs for deduplication.
func (j RefreshJob) Key() string {
	return j.Username
}
