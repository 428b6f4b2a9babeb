package residency

// Event is published when residency state changes: a model is tracked or
// dropped, the baseline is taken, ghost memory appears or clears, or the
// zombie killer runs. ModelID is empty for device-wide events; Fields
// carries the measurements that explain the event (ghost_mb, severity,
// error and so on).
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// EventPublisher receives events. The tracker and the killer publish
// outside their locks, so Publish may call back into them. It must not
// block or panic.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// Event names.
const (
	EventTrackLoad        = "track_load"
	EventTrackUnload      = "track_unload"
	EventBaselineRecorded = "baseline_recorded"
	EventGhostDetected    = "ghost_detected"
	EventGhostCleared     = "ghost_cleared"
	EventProbeFailure     = "probe_failure"
	EventReset            = "reset"
	EventKillStart        = "zombie_kill_start"
	EventKillDone         = "zombie_kill_done"
)
