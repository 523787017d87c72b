package core

import "time"

// CycleState names the steps of a sync cycle.
type CycleState string

const (
	CycleStateIdle     CycleState = "idle"
	CycleStatePlanning CycleState = "planning"
	CycleStateFetching CycleState = "fetching"
	CycleStateMerging  CycleState = "merging"
	CycleStateEvicting CycleState = "evicting"
)

// CycleStatus represents how a cycle ended
type CycleStatus string

const (
	CycleStatusCompleted CycleStatus = "completed"
	CycleStatusNoop      CycleStatus = "noop"
	CycleStatusFailed    CycleStatus = "failed"
)

// StopReason records why a cycle stopped issuing bunches before the plan ran out.
type StopReason string

const (
	StopReasonNone       StopReason = ""
	StopReasonEmptyBunch StopReason = "empty_bunch"
	StopReasonQuota      StopReason = "quota_exceeded"
	StopReasonEmptyPlan  StopReason = "empty_plan"
	StopReasonCancelled  StopReason = "cancelled"
)

// CycleReport summarises a single execution of the sync orchestrator.
type CycleReport struct {
	RunID          string      `json:"run_id" yaml:"run_id"`
	Trigger        string      `json:"trigger" yaml:"trigger"`
	StartedAt      time.Time   `json:"started_at" yaml:"started_at"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Status         CycleStatus `json:"status" yaml:"status"`
	Bunches        int         `json:"bunches" yaml:"bunches"`
	BunchesFetched int         `json:"bunches_fetched" yaml:"bunches_fetched"`
	StopReason     StopReason  `json:"stop_reason,omitempty" yaml:"stop_reason,omitempty"`
	Fetched        int         `json:"fetched" yaml:"fetched"`
	Stale          int         `json:"stale" yaml:"stale"`
	Filtered       int         `json:"filtered" yaml:"filtered"`
	Added          int         `json:"added" yaml:"added"`
	Evicted        int         `json:"evicted" yaml:"evicted"`
	StoreSize      int         `json:"store_size" yaml:"store_size"`
	Watermark      Timestamp   `json:"watermark" yaml:"watermark"`
	Mutated        bool        `json:"mutated" yaml:"mutated"`
	Errors         []string    `json:"errors,omitempty" yaml:"errors,omitempty"`
}
