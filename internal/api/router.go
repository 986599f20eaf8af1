// Package api assembles the gin engine: pages, the ballot endpoint, poll
// administration and the result event stream.
package api

import (
	"time"

	"github.com/ErronZrz/rank-poll/internal/api/handlers"
	"github.com/ErronZrz/rank-poll/internal/api/sse"
	"github.com/ErronZrz/rank-poll/internal/api/views"
	"github.com/ErronZrz/rank-poll/internal/service"
	"github.com/ErronZrz/rank-poll/internal/submitter"
	"github.com/ErronZrz/rank-poll/internal/telemetry"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Deps struct {
	Ballots       *service.BallotService
	Items         *service.ItemService
	Rankings      *service.RankingService
	Hub           *sse.Hub
	Logger        *zap.Logger
	SecureCookies bool
	SSEHeartbeat  time.Duration
}

func SetupRouter(d Deps) (*gin.Engine, error) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	tmpl, err := views.Templates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(telemetry.GinTracing(), telemetry.GinLogger(d.Logger), gin.Recovery())
	r.SetHTMLTemplate(tmpl)

	pages := &handlers.PageHandlerDeps{
		Ballots:  d.Ballots,
		Items:    d.Items,
		Rankings: d.Rankings,
		Cookies:  handlers.Cookies{Secure: d.SecureCookies},
		Logger:   d.Logger,
	}
	poll := &handlers.PollHandlerDeps{Items: d.Items, Rankings: d.Rankings, Logger: d.Logger}

	r.GET("/", pages.Index)
	r.GET("/register", pages.Register)
	r.POST("/login", pages.Login)
	r.GET(submitter.BallotPath, pages.Ballot)
	r.POST(submitter.BallotPath, pages.UpdateBallot)

	r.GET("/result", poll.Result)
	r.GET("/items", poll.ListItems)
	r.POST("/items", poll.SaveItem)
	r.POST("/items/:id/done", poll.MarkDone)

	// SSE
	r.GET("/events", d.Hub.Handler(d.SSEHeartbeat))

	r.GET("/health", handlers.Health)
	r.StaticFS("/static", views.Static())

	return r, nil
}
