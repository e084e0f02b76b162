package types

import "time"

// RunStats summarizes one crawl. It is reported even when the run ends early.
type RunStats struct {
	RunID        string    `json:"run_id"`
	State        string    `json:"state"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Pages        int       `json:"pages"`
	PagesSkipped int       `json:"pages_skipped"`
	Malformed    int       `json:"malformed_cards"`
	Processed    int       `json:"members_processed"`
	Emitted      int       `json:"members_emitted"`
	EmitFailures int       `json:"emit_failures"`
	DetailErrors int       `json:"detail_errors"`
	Handles      int       `json:"handles_found"`
	Channels     int       `json:"channels"`
	Chats        int       `json:"chats"`
	Personal     int       `json:"personal"`
	Unclassified int       `json:"unclassified"`
	ProbeErrors  int       `json:"probe_errors"`
}

// Duration returns the wall time of the run.
func (s *RunStats) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
