package delivery

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"unibox-backend/internal/sync/usecase"
)

type SyncHandler struct {
	syncUsecase usecase.SyncUsecase
}

func NewSyncHandler(syncUsecase usecase.SyncUsecase) *SyncHandler {
	return &SyncHandler{
		syncUsecase: syncUsecase,
	}
}

// TriggerSync starts a catch-up run for the caller. If one is already in
// flight the response says so instead of stacking a second run.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	userID := c.GetString("userID")
	filter := usecase.SyncFilter{
		Provider:  c.Query("provider"),
		AccountID: c.Query("account_id"),
	}

	summary, err := h.syncUsecase.TriggerSync(c.Request.Context(), userID, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if summary.AlreadyRunning {
		c.JSON(http.StatusConflict, summary)
		return
	}
	if summary.RateLimited {
		c.Header("Retry-After", strconv.Itoa(summary.RetryAfterSeconds))
	}
	c.JSON(http.StatusOK, summary)
}
