package handlers

import (
	"errors"
	"net/http"

	"github.com/ErronZrz/rank-poll/internal/api/views"
	"github.com/ErronZrz/rank-poll/internal/core"
	"github.com/ErronZrz/rank-poll/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PageHandlerDeps serves the voter-facing pages and the ballot endpoint the
// browser submitter posts to.
type PageHandlerDeps struct {
	Ballots  *service.BallotService
	Items    *service.ItemService
	Rankings *service.RankingService
	Cookies  Cookies
	Logger   *zap.Logger
}

type ballotUpdateReq struct {
	RankedItemIDs []core.ItemID `json:"ranked_item_ids" binding:"required"`
}

// Index shows the current best item; voters with a session go straight to their ballot.
func (h *PageHandlerDeps) Index(c *gin.Context) {
	if _, ok := h.Cookies.Session(c); ok {
		redirect(c, http.StatusSeeOther, "/ballot")
		return
	}
	best, err := h.Rankings.BestItem(c.Request.Context())
	if err != nil {
		serverError(c, h.Logger, "load best item failed", err)
		return
	}
	c.HTML(http.StatusOK, "index.html", views.IndexPage{
		BestItem: best,
		Flashes:  h.Cookies.TakeFlashes(c),
	})
}

func (h *PageHandlerDeps) Register(c *gin.Context) {
	u, err := h.Ballots.Register(c.Request.Context(), "")
	if err != nil {
		serverError(c, h.Logger, "register ballot failed", err)
		return
	}
	h.Cookies.Login(c, u.String())
	redirect(c, http.StatusFound, "/ballot")
}

func (h *PageHandlerDeps) Login(c *gin.Context) {
	b, err := h.Ballots.Find(c.Request.Context(), c.PostForm("uuid"))
	if err != nil {
		serverError(c, h.Logger, "find ballot failed", err)
		return
	}
	if b == nil {
		h.Cookies.Flash(c, views.FlashError, "UUID not found")
		redirect(c, http.StatusSeeOther, "/")
		return
	}
	h.Cookies.Login(c, b.UUID.String())
	h.Cookies.Flash(c, views.FlashSuccess, "Logged in")
	redirect(c, http.StatusFound, "/ballot")
}

func (h *PageHandlerDeps) Ballot(c *gin.Context) {
	b, ok := h.sessionBallot(c)
	if !ok {
		return
	}

	var (
		best             *core.Item
		ranked, unranked []core.Item
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		best, err = h.Rankings.BestItem(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		ranked, unranked, err = h.Items.BallotItems(ctx, b.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		serverError(c, h.Logger, "load ballot failed", err)
		return
	}

	c.HTML(http.StatusOK, "ballot.html", views.BallotPage{
		UUID:          b.UUID.String(),
		BestItem:      best,
		Flashes:       h.Cookies.TakeFlashes(c),
		RankedItems:   ranked,
		UnrankedItems: unranked,
	})
}

// UpdateBallot replaces the session ballot's ranking with {"ranked_item_ids": [...]}.
func (h *PageHandlerDeps) UpdateBallot(c *gin.Context) {
	b, ok := h.sessionBallot(c)
	if !ok {
		return
	}
	var req ballotUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONBadRequest(c, "invalid payload")
		return
	}
	err := h.Rankings.UpdateBallotRankings(c.Request.Context(), b.ID, req.RankedItemIDs)
	switch {
	case errors.Is(err, service.ErrInvalidRanking):
		JSONBadRequest(c, err.Error())
	case err != nil:
		serverError(c, h.Logger, "update rankings failed", err)
	default:
		c.Status(http.StatusAccepted)
	}
}

// sessionBallot resolves the ballot behind the session cookie. A session that
// no longer names a ballot is cleared and the voter sent back to the index.
func (h *PageHandlerDeps) sessionBallot(c *gin.Context) (*core.Ballot, bool) {
	raw, ok := h.Cookies.Session(c)
	if !ok {
		if c.Request.Method == http.MethodGet {
			redirect(c, http.StatusSeeOther, "/")
		} else {
			JSONUnauthorized(c, "no session")
		}
		return nil, false
	}
	b, err := h.Ballots.Find(c.Request.Context(), raw)
	if err != nil {
		serverError(c, h.Logger, "find ballot failed", err)
		return nil, false
	}
	if b == nil {
		h.Logger.Info("invalid session", zap.String("uuid", raw))
		h.Cookies.Logout(c)
		h.Cookies.Flash(c, views.FlashError, "Invalid session")
		redirect(c, http.StatusSeeOther, "/")
		return nil, false
	}
	return b, true
}
