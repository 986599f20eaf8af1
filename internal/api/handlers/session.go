package handlers

import (
	"net/http"
	"strings"

	"github.com/ErronZrz/rank-poll/internal/api/views"
	"github.com/ErronZrz/rank-poll/internal/core"
	"github.com/gin-gonic/gin"
)

const (
	flashCookie    = "_flash"
	sessionMaxAge  = 60 * 60 * 24 * 365
	flashSeparator = "|"
)

// Cookies sets and reads the session and flash cookies.
type Cookies struct {
	Secure bool
}

func (k Cookies) Session(c *gin.Context) (string, bool) {
	v, err := c.Cookie(core.SessionCookie)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

func (k Cookies) Login(c *gin.Context, ballotUUID string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(core.SessionCookie, ballotUUID, sessionMaxAge, "/", "", k.Secure, true)
}

func (k Cookies) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(core.SessionCookie, "", -1, "/", "", k.Secure, true)
}

// Flash stores a notice for the next page render.
func (k Cookies) Flash(c *gin.Context, level, msg string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, level+flashSeparator+msg, 60, "/", "", k.Secure, true)
}

// TakeFlashes reads the pending notice, if any, and clears it.
func (k Cookies) TakeFlashes(c *gin.Context) []views.Flash {
	v, err := c.Cookie(flashCookie)
	if err != nil || v == "" {
		return nil
	}
	c.SetCookie(flashCookie, "", -1, "/", "", k.Secure, true)
	level, msg, ok := strings.Cut(v, flashSeparator)
	if !ok {
		return nil
	}
	return []views.Flash{{Level: level, Message: msg}}
}
