package websocket

import (
	"canmlio/internal/decode"
)

// ProgressReporter bridges the decode stream's progress callbacks onto
// the hub, tagging every event with the run that produced it.
type ProgressReporter struct {
	hub   *Hub
	runID string
}

// NewProgressReporter creates a reporter broadcasting on the hub.
func NewProgressReporter(hub *Hub, runID string) *ProgressReporter {
	return &ProgressReporter{hub: hub, runID: runID}
}

// Progress implements decode.Reporter.
func (r *ProgressReporter) Progress(stats decode.Stats) {
	r.hub.Broadcast(Event{Type: TypeProgress, RunID: r.runID, Data: stats})
}
