package core

import (
	"context"
	"time"
)

// TriggerEvent represents a trigger firing. Tags is nil when the runner should
// resolve the tag list from its configured tag source.
type TriggerEvent struct {
	Source    string
	Timestamp time.Time
	Tags      []string
}

// Trigger decides when a sync cycle runs
type Trigger interface {
	Name() string
	Validate() error
	// Start begins the trigger and returns a channel of trigger events.
	// The channel is closed once the trigger stops.
	Start(ctx context.Context) (<-chan TriggerEvent, error)
	// Stop gracefully shuts down the trigger
	Stop() error
}
