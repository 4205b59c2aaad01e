package syncer

import (
	"go.uber.org/zap"
)

// State is a step of the sync state machine.
type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateParsing   State = "parsing"
	StateDiffing   State = "diffing"
	StateReporting State = "reporting"
	StateGuarding  State = "guarding"
	StateWriting   State = "writing"
	StateVerifying State = "verifying"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// tracker records the path a run takes through the states.
type tracker struct {
	log     *zap.Logger
	current State
	path    []State
}

func newTracker(log *zap.Logger) *tracker {
	return &tracker{log: log, current: StateIdle, path: []State{StateIdle}}
}

func (t *tracker) enter(next State) {
	t.log.Info("sync: state",
		zap.String("from", string(t.current)),
		zap.String("to", string(next)),
	)
	t.current = next
	t.path = append(t.path, next)
}
