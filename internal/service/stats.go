package service

import (
	"context"
	"time"

	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/pkg/log"
)

// dashboardWindow — окно графика активности.
const dashboardWindow = 30 * 24 * time.Hour

// Dashboard возвращает сводную статистику платформы.
func (s *Service) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	const op = "service/stats/Dashboard"

	lg := log.From(ctx).With("op", op)

	d, err := s.storage.Dashboard(ctx, s.now().Add(-dashboardWindow))
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	return d, nil
}
