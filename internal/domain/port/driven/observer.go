package driven

import (
	"context"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
)

// RunOutcome summarizes one finished pipeline run.
type RunOutcome struct {
	Channel   model.Channel
	EventID   string
	TenantID  string
	State     string // Terminal state: DONE or DROPPED.
	LastState string // Last state entered before the terminal one.
	Reason    string
	Err       error
}

// RunTrace follows a single pipeline run.
type RunTrace interface {
	// Enter records that the run moved into state.
	Enter(state string)

	// End closes the trace with the run's outcome.
	End(outcome RunOutcome)
}

// PipelineObserver defines the driven port for run-level instrumentation.
// The returned context carries the run's trace for downstream calls.
type PipelineObserver interface {
	StartRun(ctx context.Context, channel model.Channel, eventID string) (context.Context, RunTrace)
}
