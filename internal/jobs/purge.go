package jobs

import (
	"context"

	"go.uber.org/zap"

	"github.com/Krishna180104/cse-leave/internal/models"
)

type Purger interface {
	DeleteAllWithStatus(ctx context.Context, status models.LeaveStatus) (int64, error)
}

// PurgeRejected — периодическая очистка отклонённых заявок.
func PurgeRejected(p Purger, log *zap.Logger) Job {
	return func(ctx context.Context) error {
		n, err := p.DeleteAllWithStatus(ctx, models.LeaveRejected)
		if err != nil {
			return err
		}
		if n > 0 && log != nil {
			log.Info("rejected leave requests purged", zap.Int64("count", n))
		}
		return nil
	}
}
