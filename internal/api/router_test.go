package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ErronZrz/rank-poll/internal/api/sse"
	"github.com/ErronZrz/rank-poll/internal/core"
	"github.com/ErronZrz/rank-poll/internal/service"
	"github.com/ErronZrz/rank-poll/internal/storage/file"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router   *gin.Engine
	store    *file.Store
	hub      *sse.Hub
	rankings *service.RankingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := file.Open(file.Options{DataDir: t.TempDir(), GroupCommit: time.Millisecond, GroupBatch: 8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	for _, it := range []core.Item{{ID: 3, Title: "three"}, {ID: 5, Title: "five"}, {ID: 9, Title: "nine"}} {
		require.NoError(t, store.Upsert(ctx, it))
	}

	hub := sse.NewHub(nil)
	rankings := service.NewRankingService(store, store, nil, nil)
	rankings.OnResult(func(res service.PollResult) { hub.Publish(res) })

	r, err := SetupRouter(Deps{
		Ballots:  service.NewBallotService(store, nil),
		Items:    service.NewItemService(store, rankings.Changed),
		Rankings: rankings,
		Hub:      hub,
	})
	require.NoError(t, err)
	return &testEnv{router: r, store: store, hub: hub, rankings: rankings}
}

func (e *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (e *testEnv) register(t *testing.T) *http.Cookie {
	t.Helper()
	w := e.do(httptest.NewRequest(http.MethodGet, "/register", nil))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/ballot", w.Header().Get("Location"))
	session := cookieNamed(w, core.SessionCookie)
	require.NotNil(t, session)
	_, err := uuid.Parse(session.Value)
	require.NoError(t, err)
	return session
}

func postBallot(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/ballot", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestIndex(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No best item yet")

	session := e.register(t)
	w = e.do(httptest.NewRequest(http.MethodGet, "/", nil), session)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/ballot", w.Header().Get("Location"))
}

func TestBallot_SubmitAndRender(t *testing.T) {
	e := newTestEnv(t)
	session := e.register(t)

	w := e.do(postBallot(`{"ranked_item_ids":[5,3]}`), session)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = e.do(httptest.NewRequest(http.MethodGet, "/ballot", nil), session)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	five := strings.Index(body, `data-id="5"`)
	three := strings.Index(body, `data-id="3"`)
	delim := strings.Index(body, `data-id="delimiter"`)
	nine := strings.Index(body, `data-id="9"`)
	assert.True(t, five < three && three < delim && delim < nine, body)
	assert.Contains(t, body, session.Value)
	assert.Contains(t, body, "five")

	w = e.do(httptest.NewRequest(http.MethodGet, "/result", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"winner"`)
}

func TestBallot_EmptyRankingClearsBallot(t *testing.T) {
	e := newTestEnv(t)
	session := e.register(t)

	require.Equal(t, http.StatusAccepted, e.do(postBallot(`{"ranked_item_ids":[9]}`), session).Code)
	require.Equal(t, http.StatusAccepted, e.do(postBallot(`{"ranked_item_ids":[]}`), session).Code)

	res, err := e.rankings.Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.NoWinner, res.Outcome)
}

func TestBallot_BadRequests(t *testing.T) {
	e := newTestEnv(t)
	session := e.register(t)

	for name, body := range map[string]string{
		"malformed":     `{"ranked_item_ids":`,
		"missing field": `{}`,
		"strings":       `{"ranked_item_ids":["5"]}`,
		"unknown item":  `{"ranked_item_ids":[42]}`,
		"duplicate":     `{"ranked_item_ids":[5,5]}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := e.do(postBallot(body), session)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestBallot_InvalidSession(t *testing.T) {
	e := newTestEnv(t)
	stale := &http.Cookie{Name: core.SessionCookie, Value: uuid.NewString()}

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/ballot", nil),
		postBallot(`{"ranked_item_ids":[5]}`),
	} {
		w := e.do(req, stale)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))

		cleared := cookieNamed(w, core.SessionCookie)
		require.NotNil(t, cleared)
		assert.Empty(t, cleared.Value)
		assert.Less(t, cleared.MaxAge, 0)

		flash := cookieNamed(w, "_flash")
		require.NotNil(t, flash)

		// the flash shows once on the index page
		w = e.do(httptest.NewRequest(http.MethodGet, "/", nil), flash)
		assert.Contains(t, w.Body.String(), "Invalid session")
	}
}

func TestBallot_NoSession(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(httptest.NewRequest(http.MethodGet, "/ballot", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)

	w = e.do(postBallot(`{"ranked_item_ids":[5]}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)
	session := e.register(t)

	login := func(raw string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(url.Values{"uuid": {raw}}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return e.do(req)
	}

	w := login(session.Value)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/ballot", w.Header().Get("Location"))
	got := cookieNamed(w, core.SessionCookie)
	require.NotNil(t, got)
	assert.Equal(t, session.Value, got.Value)

	w = login(uuid.NewString())
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Nil(t, cookieNamed(w, core.SessionCookie))

	flash := cookieNamed(w, "_flash")
	require.NotNil(t, flash)
	w = e.do(httptest.NewRequest(http.MethodGet, "/", nil), flash)
	assert.Contains(t, w.Body.String(), "UUID not found")
}

func TestItemsAdmin(t *testing.T) {
	e := newTestEnv(t)
	session := e.register(t)
	require.Equal(t, http.StatusAccepted, e.do(postBallot(`{"ranked_item_ids":[5]}`), session).Code)

	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"id":11,"title":"eleven"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusOK, e.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"id":12,"title":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, e.do(req).Code)

	w := e.do(httptest.NewRequest(http.MethodGet, "/items", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "eleven")

	// closing the only ranked item leaves no winner
	w = e.do(httptest.NewRequest(http.MethodPost, "/items/5/done", nil))
	require.Equal(t, http.StatusOK, w.Code)
	res, err := e.rankings.Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.NoWinner, res.Outcome)

	assert.Equal(t, http.StatusNotFound, e.do(httptest.NewRequest(http.MethodPost, "/items/404/done", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(httptest.NewRequest(http.MethodPost, "/items/x/done", nil)).Code)
}

func TestBallotUpdate_PublishesResult(t *testing.T) {
	e := newTestEnv(t)
	session := e.register(t)

	sub := e.hub.Subscribe()
	defer e.hub.Unsubscribe(sub)

	require.Equal(t, http.StatusAccepted, e.do(postBallot(`{"ranked_item_ids":[9,3]}`), session).Code)
	select {
	case msg := <-sub:
		assert.Contains(t, string(msg), `"outcome":"winner"`)
		assert.Contains(t, string(msg), `"title":"nine"`)
	case <-time.After(time.Second):
		t.Fatal("no result published")
	}
}

func TestStaticBallotScript(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(httptest.NewRequest(http.MethodGet, "/static/ballot.js", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ranked_item_ids")
}
