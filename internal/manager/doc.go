// Package manager coordinates model switching on top of the residency
// tracker. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: State, ModelInfo, SwitchResult, Snapshot.
//   - errors.go: error types and helpers (IsModelNotFound, IsLoaderFailure).
//   - switch.go: Switch, the serialized unload-then-load sequence.
//   - unload.go: Unload, UnloadAll and the releasers handed to the zombie killer.
//   - status_report.go: Status and model listing DTOs.
//   - convert.go: residency types to API DTOs.
//
// Loader calls happen outside every residency lock; the tracker is only
// told about a model after its loader reported success.
package manager
