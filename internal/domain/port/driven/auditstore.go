package driven

import (
	"context"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
)

// AuditStore defines the driven port for the append-only audit log. Events
// are written and never read back by the service.
type AuditStore interface {
	Record(ctx context.Context, e model.AuditEvent) error
}
