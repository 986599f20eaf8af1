package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ErronZrz/rank-poll/internal/core"
	"github.com/ErronZrz/rank-poll/internal/service"
	"github.com/ErronZrz/rank-poll/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PollHandlerDeps struct {
	Items    *service.ItemService
	Rankings *service.RankingService
	Logger   *zap.Logger
}

type saveItemReq struct {
	ID      core.ItemID `json:"id"`
	Title   string      `json:"title"`
	Content string      `json:"content"`
	Done    bool        `json:"done"`
}

// Result returns the full runoff: outcome, winners and every round's tally.
func (h *PollHandlerDeps) Result(c *gin.Context) {
	res, err := h.Rankings.Result(c.Request.Context())
	if err != nil {
		serverError(c, h.Logger, "tally failed", err)
		return
	}
	JSONOK(c, res)
}

func (h *PollHandlerDeps) ListItems(c *gin.Context) {
	items, err := h.Items.List(c.Request.Context())
	if err != nil {
		serverError(c, h.Logger, "list items failed", err)
		return
	}
	JSONOK(c, gin.H{"items": items})
}

func (h *PollHandlerDeps) SaveItem(c *gin.Context) {
	var req saveItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONBadRequest(c, "invalid payload")
		return
	}
	it := core.Item{ID: req.ID, Title: strings.TrimSpace(req.Title), Content: req.Content, Done: req.Done}
	err := h.Items.Save(c.Request.Context(), it)
	switch {
	case errors.Is(err, service.ErrInvalidItem):
		JSONBadRequest(c, err.Error())
	case err != nil:
		serverError(c, h.Logger, "save item failed", err)
	default:
		JSONOK(c, it)
	}
}

// MarkDone closes an item; ?done=false reopens it.
func (h *PollHandlerDeps) MarkDone(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		JSONBadRequest(c, "invalid id")
		return
	}
	done := true
	if v := c.Query("done"); v != "" {
		if done, err = strconv.ParseBool(v); err != nil {
			JSONBadRequest(c, "invalid done")
			return
		}
	}
	err = h.Items.MarkDone(c.Request.Context(), id, done)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		JSONNotFound(c, "item not found")
	case err != nil:
		serverError(c, h.Logger, "mark item failed", err)
	default:
		JSONOK(c, gin.H{"id": id, "done": done})
	}
}

func Health(c *gin.Context) {
	c.Status(http.StatusOK)
}
