package driven

import (
	"context"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
)

// ActivityStore defines the driven port for the append-only activity log.
type ActivityStore interface {
	Append(ctx context.Context, entry model.ActivityLog) error
}
