// Package residency tracks which models occupy the accelerator and detects
// ghost memory: device usage that the residency accounting cannot explain.
// It is structured into small files by concern:
//
//   - types.go: Record, Classification, GhostStatus, Snapshot.
//   - config.go: Config and package defaults; New applies defaults.
//   - table.go: the residency table owned by the Tracker.
//   - detector.go: pure ghost classification and VRAM attribution.
//   - tracker.go: Tracker, the orchestrator (baseline, load/unload, refresh).
//   - poll.go: periodic background refresh.
//   - zombie.go: ZombieKiller, the optional corrective loop.
//   - events.go, eventpub_memory.go: lifecycle events.
//
// Memory tracking fails open. Probe failures never surface as errors to
// callers; they only degrade the accuracy of the reported numbers.
package residency
