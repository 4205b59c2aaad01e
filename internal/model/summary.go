package model

import "time"

// RunStatus is the terminal status of a sync run.
type RunStatus string

const (
	RunStatusOK     RunStatus = "ok"
	RunStatusDryRun RunStatus = "dry-run"
	RunStatusFailed RunStatus = "failed"
)

// SyncMode selects whether a run writes to the store.
type SyncMode string

const (
	ModeDryRun SyncMode = "dry-run"
	ModeApply  SyncMode = "apply"
)

// Trigger sources.
const (
	TriggerHTTP     = "http"
	TriggerCron     = "cron"
	TriggerCLI      = "cli"
	TriggerBackfill = "backfill"
)

// SourceSummary breaks a run down per sheet source.
type SourceSummary struct {
	Key         string `json:"key"`
	Cuisine     string `json:"cuisine"`
	Hash        string `json:"hash"`
	Changed     bool   `json:"changed"`
	Places      int    `json:"places"`
	Inserted    int    `json:"inserted"`
	Updated     int    `json:"updated"`
	Deactivated int    `json:"deactivated"`
}

// Verification carries post-apply sanity counts.
type Verification struct {
	UnresolvedVideos int `json:"unresolvedVideos"`
	Ungeocoded       int `json:"ungeocoded"`
}

// SyncRunSummary is the structured outcome of one orchestrator invocation.
type SyncRunSummary struct {
	RunID         string          `json:"runId"`
	Status        RunStatus       `json:"status"`
	Mode          SyncMode        `json:"mode"`
	TriggerSource string          `json:"triggerSource"`
	NoChanges     bool            `json:"noChanges"`
	Forced        bool            `json:"forced"`
	ChangeRatio   float64         `json:"changeRatio"`
	Inserted      int             `json:"inserted"`
	Updated       int             `json:"updated"`
	Deactivated   int             `json:"deactivated"`
	Skipped       int             `json:"skipped"`
	Errors        []string        `json:"errors"`
	Warnings      []string        `json:"warnings"`
	Sources       []SourceSummary `json:"sources,omitempty"`
	Verification  *Verification   `json:"verification,omitempty"`
	StartedAt     time.Time       `json:"startedAt"`
	FinishedAt    time.Time       `json:"finishedAt"`
}

// Failed reports whether the run ended in failure.
func (s *SyncRunSummary) Failed() bool {
	return s.Status == RunStatusFailed
}

// Warn appends a warning.
func (s *SyncRunSummary) Warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// Fail marks the run failed with msg.
func (s *SyncRunSummary) Fail(msg string) {
	s.Status = RunStatusFailed
	s.Errors = append(s.Errors, msg)
}
