package manager

import "residencyd/internal/catalog"

// State represents the lifecycle state of the manager.
type State string

const (
	StateReady   State = "ready"
	StateLoading State = "loading"
	StateError   State = "error"
)

// ModelInfo is a minimal view of the current model.
type ModelInfo struct {
	ID     string
	Name   string
	Family catalog.Family
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State        State
	CurrentModel *ModelInfo
	Err          string
}

// SwitchResult describes a completed switch.
type SwitchResult struct {
	Previous string
	Current  string
	Changed  bool
}

// UnloadResult describes an unload or unload-all action.
type UnloadResult struct {
	Released       []string
	Failed         map[string]string
	RecordsCleared int
}
