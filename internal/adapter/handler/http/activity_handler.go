package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/repository"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/middleware/auth"
	pkgErrors "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/pkg/errors"
	"go.uber.org/zap"
)

type ActivityHandler struct {
	activities repository.ActivityRepository
	logger     *zap.Logger
}

func NewActivityHandler(activities repository.ActivityRepository, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		activities: activities,
		logger:     logger,
	}
}

// ListActivitiesRequest holds the audit trail query parameters
type ListActivitiesRequest struct {
	Type      string `query:"type" validate:"omitempty,max=100"`
	AccountID string `query:"account_id" validate:"omitempty,max=255"`
	Since     string `query:"since" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Until     string `query:"until" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Limit     int    `query:"limit" validate:"omitempty,min=1,max=500"`
}

// ListActivities returns audit records, newest first
// GET /api/v1/activities
func (h *ActivityHandler) ListActivities(c echo.Context) error {
	var req ListActivitiesRequest
	if err := c.Bind(&req); err != nil {
		return pkgErrors.ToHTTPError(pkgErrors.NewAppError(pkgErrors.ErrInvalidArgument, "invalid query parameters", err))
	}
	if err := c.Validate(&req); err != nil {
		return pkgErrors.ToHTTPError(pkgErrors.NewAppError(pkgErrors.ErrInvalidArgument, "invalid query parameters", err))
	}

	filter := entity.ActivityFilter{
		Type:      req.Type,
		AccountID: req.AccountID,
		Limit:     req.Limit,
	}
	// validated above
	if req.Since != "" {
		filter.Since, _ = time.Parse(time.RFC3339, req.Since)
	}
	if req.Until != "" {
		filter.Until, _ = time.Parse(time.RFC3339, req.Until)
	}
	if !filter.Since.IsZero() && !filter.Until.IsZero() && !filter.Since.Before(filter.Until) {
		return pkgErrors.ToHTTPError(pkgErrors.NewAppError(pkgErrors.ErrInvalidArgument, "since must be before until", nil))
	}

	records, err := h.activities.List(c.Request().Context(), filter)
	if err != nil {
		pkgErrors.LogError(h.logger, err, "Failed to list activities",
			zap.String("type", req.Type),
			zap.String("account_id", req.AccountID),
		)
		return pkgErrors.ToHTTPError(pkgErrors.Wrap(err, "failed to list activities"))
	}

	if user, err := auth.GetUserFromContext(c); err == nil {
		h.logger.Debug("Activities listed",
			zap.String("subject", user.Subject),
			zap.Int("count", len(records)),
		)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"activities": records,
		"count":      len(records),
	})
}
