package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avoronov/newsmux/app/channel"
	"github.com/avoronov/newsmux/app/database"
	"github.com/avoronov/newsmux/app/pipeline"
)

const listLimit = 100

type Handler struct {
	configCache  *channel.ConfigCache
	ingestedRepo database.IngestedRepo
	outgoingRepo database.OutgoingRepo
	orchestrator pipeline.OrchestratorInterface
}

func NewHandler(configCache *channel.ConfigCache, ingestedRepo database.IngestedRepo,
	outgoingRepo database.OutgoingRepo, orchestrator pipeline.OrchestratorInterface) *Handler {
	return &Handler{
		configCache:  configCache,
		ingestedRepo: ingestedRepo,
		outgoingRepo: outgoingRepo,
		orchestrator: orchestrator,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp":             time.Now().In(time.Local).Format(time.RFC3339),
		"loaded_configurations": h.configCache.GetConfigCount(),
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.orchestrator.GetStatus())
}

// TriggerTick kicks off a pipeline run without waiting for the schedule.
// The run happens in the background; an overlapping run is skipped by the
// orchestrator's run lock.
func (h *Handler) TriggerTick(c *gin.Context) {
	go func() {
		if err := h.orchestrator.RunTick(context.Background()); err != nil {
			slog.Error("Manual tick failed", "error", err.Error())
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "Tick triggered"})
}

func (h *Handler) ListIngestedItems(c *gin.Context) {
	state, err := database.ParseIngestedState(c.DefaultQuery("state", string(database.IngestedStateError)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, err := h.ingestedRepo.GetByState(state, listLimit)
	if err != nil {
		slog.Error("Database error", "operation", "list_ingested", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]interface{}{
			"id":          item.ID,
			"channel_id":  item.ChannelID,
			"source_guid": item.SourceGUID,
			"headline":    item.Headline,
			"state":       item.State,
			"error":       item.Error,
			"posted_at":   item.PostedAt,
			"outgoing_id": item.OutgoingID,
		})
	}

	c.JSON(http.StatusOK, gin.H{"state": state, "count": len(out), "items": out})
}

func (h *Handler) ListOutgoingItems(c *gin.Context) {
	state, err := database.ParseOutgoingState(c.DefaultQuery("state", string(database.OutgoingStateSent)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, err := h.outgoingRepo.GetByStates([]database.OutgoingState{state})
	if err != nil {
		slog.Error("Database error", "operation", "list_outgoing", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]interface{}{
			"id":               item.ID,
			"native_id":        item.NativeID,
			"state":            item.State,
			"sent_at":          item.SentAt,
			"engagement":       item.Engagement,
			"normalized_score": item.NormalizedScore,
			"error":            item.Error,
		})
	}

	c.JSON(http.StatusOK, gin.H{"state": state, "count": len(out), "items": out})
}

// RetryItem moves an errored item back to cleaned so the next tick picks it
// up again. This is the only way out of the error state.
func (h *Handler) RetryItem(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	if err := h.ingestedRepo.RetryError(id); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	slog.Info("Item queued for retry", "item", id)

	c.JSON(http.StatusOK, gin.H{"message": "Item queued for retry", "id": id})
}
