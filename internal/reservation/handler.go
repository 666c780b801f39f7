// Package reservation implements the handler behind the reservation topics:
// validate the payload, then decrement the ledger one unit at a time.
package reservation

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/you/reserveq/internal/domain"
	"github.com/you/reserveq/internal/ledger"
	"github.com/you/reserveq/internal/queue"
)

// Payload is what a reservation job carries. Quantity defaults to 1.
type Payload struct {
	ResourceID string `json:"resourceId"`
	Quantity   int    `json:"quantity,omitempty"`
}

// NewHandler returns the queue handler for reservation jobs. Validation
// failures never touch the ledger. A multi-unit reservation decrements one
// unit per step; if the resource runs out mid-way the job fails out-of-stock
// and the earlier decrements stand, the same non-transactional behavior the
// underlying store has always had.
func NewHandler(l *ledger.Ledger, log *zap.Logger) queue.Handler {
	return func(ctx context.Context, job domain.Job, progress func(int), done func(error)) {
		var p Payload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			done(&domain.ValidationError{Reason: fmt.Sprintf("bad payload: %v", err)})
			return
		}
		if p.ResourceID == "" {
			done(&domain.ValidationError{Reason: "resourceId is required"})
			return
		}
		if p.Quantity < 0 {
			done(&domain.ValidationError{Reason: fmt.Sprintf("quantity %d is negative", p.Quantity)})
			return
		}
		quantity := p.Quantity
		if quantity == 0 {
			quantity = 1
		}

		for i := 0; i < quantity; i++ {
			res, err := l.TryReserveOne(ctx, p.ResourceID)
			if err != nil {
				done(err)
				return
			}
			if !res.Reserved {
				done(&domain.OutOfStockError{Resource: p.ResourceID})
				return
			}
			log.Info("unit reserved",
				zap.Int64("job_id", job.ID),
				zap.String("resource", p.ResourceID),
				zap.Int64("remaining", res.Remaining))
		}
		done(nil)
	}
}
