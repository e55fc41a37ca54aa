package handlers

import (
	"net/http"

	"carnumbers/internal/common"
	"carnumbers/internal/jobs"
	"carnumbers/internal/jobs/background"
	"carnumbers/internal/models"
	"carnumbers/internal/services"

	"github.com/labstack/echo/v4"
)

// SchedulerStatus reports background job state. Nil when the scheduler
// is not running in this process.
type SchedulerStatus interface {
	Status() []background.JobStatus
}

type SyncHandlers struct {
	syncer       jobs.Syncer
	tracker      *jobs.SyncStatusTracker
	reservations services.ReservationService
	scheduler    SchedulerStatus
}

func NewSyncHandlers(syncer jobs.Syncer, tracker *jobs.SyncStatusTracker, reservations services.ReservationService, scheduler SchedulerStatus) *SyncHandlers {
	if tracker == nil {
		tracker = jobs.NewSyncStatusTracker()
	}
	return &SyncHandlers{
		syncer:       syncer,
		tracker:      tracker,
		reservations: reservations,
		scheduler:    scheduler,
	}
}

// SyncGuild runs a reconciliation pass for the guild right away (admin only).
func (h *SyncHandlers) SyncGuild(c echo.Context) error {
	_, guildID, _ := caller(c)

	result, err := h.syncer.SyncTenant(c.Request().Context(), guildID)
	if err != nil {
		return respondError(c, err, "sync")
	}

	switch result.Status {
	case jobs.PassSkipped:
		return common.SendNotConfiguredError(c, result.Reason)
	case jobs.PassFailed:
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"error": common.CreateErrorResponse("RETRY_LATER", result.Reason, nil).Error,
			"pass":  result,
		})
	}
	return c.JSON(http.StatusOK, result)
}

type SyncStatusResponse struct {
	Stats    *models.ReservationStats `json:"stats"`
	LastPass *jobs.PassResult         `json:"last_pass,omitempty"`
	Jobs     []background.JobStatus   `json:"jobs,omitempty"`
}

func (h *SyncHandlers) SyncStatus(c echo.Context) error {
	_, guildID, _ := caller(c)

	stats, err := h.reservations.Stats(c.Request().Context(), guildID)
	if err != nil {
		return respondError(c, err, "sync status")
	}

	resp := SyncStatusResponse{Stats: stats}
	if last, ok := h.tracker.Last(guildID); ok {
		resp.LastPass = &last
	}
	if h.scheduler != nil {
		resp.Jobs = h.scheduler.Status()
	}
	return c.JSON(http.StatusOK, resp)
}
