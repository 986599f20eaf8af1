package submitter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ErronZrz/rank-poll/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

type captured struct {
	method      string
	path        string
	contentType string
	cookie      string
	body        string
}

type recorder struct {
	mu   sync.Mutex
	reqs []captured
}

func (rec *recorder) all() []captured {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]captured(nil), rec.reqs...)
}

func newServer(t *testing.T) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c := captured{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        string(b),
		}
		if ck, err := r.Cookie(core.SessionCookie); err == nil {
			c.cookie = ck.Value
		}
		rec.mu.Lock()
		rec.reqs = append(rec.reqs, c)
		rec.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestRankedItemIDs(t *testing.T) {
	cases := []struct {
		name  string
		order []string
		want  []int
	}{
		{"items after delimiter are unranked", []string{"5", "3", "delimiter", "9"}, []int{5, 3}},
		{"delimiter first", []string{"delimiter", "5", "3"}, []int{}},
		{"delimiter last", []string{"3", "5", "delimiter"}, []int{3, 5}},
		{"only delimiter", []string{"delimiter"}, []int{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := RankedItemIDs(tc.order)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRankedItemIDs_Errors(t *testing.T) {
	_, err := RankedItemIDs([]string{"5", "3"})
	assert.ErrorIs(t, err, ErrMissingDelimiter)

	_, err = RankedItemIDs(nil)
	assert.ErrorIs(t, err, ErrMissingDelimiter)

	_, err = RankedItemIDs([]string{"5", "abc", "delimiter"})
	assert.ErrorIs(t, err, ErrInvalidItemID)

	// entries after the delimiter are never parsed
	got, err := RankedItemIDs([]string{"7", "delimiter", "abc"})
	require.NoError(t, err)
	assert.Equal(t, []int{7}, got)
}

func TestSubmit_WireFormat(t *testing.T) {
	srv, rec := newServer(t)
	s, err := New(srv.URL)
	require.NoError(t, err)

	require.NoError(t, s.Submit(context.Background(), []int{5, 3}))
	require.NoError(t, s.Submit(context.Background(), nil))

	reqs := rec.all()
	require.Len(t, reqs, 2)
	for _, r := range reqs {
		assert.Equal(t, http.MethodPost, r.method)
		assert.Equal(t, "/ballot", r.path)
		assert.Equal(t, "application/json", r.contentType)
	}
	assert.JSONEq(t, `{"ranked_item_ids":[5,3]}`, reqs[0].body)
	assert.JSONEq(t, `{"ranked_item_ids":[]}`, reqs[1].body)
}

func TestSubmit_ReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	s, err := New(srv.URL)
	require.NoError(t, err)

	assert.Error(t, s.Submit(context.Background(), []int{1}))
}

func TestSubmit_FollowsRedirects(t *testing.T) {
	var hits []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.Method+" "+r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/ballot" {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	s, err := New(srv.URL)
	require.NoError(t, err)

	require.NoError(t, s.Submit(context.Background(), []int{1}))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"POST /ballot", "GET /"}, hits)
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("localhost:8080")
	assert.Error(t, err)
	_, err = New("://")
	assert.Error(t, err)
}

func TestSortable_MoveSubmits(t *testing.T) {
	srv, rec := newServer(t)
	client, err := NewSessionClient(srv.URL, "0b0c5c1e-0f7d-4a0c-9d43-6f7f2d6c1e11")
	require.NoError(t, err)
	s, err := New(srv.URL, WithHTTPClient(client))
	require.NoError(t, err)

	list := s.Bind([]string{"5", "3", "delimiter", "9"})
	assert.Empty(t, rec.all(), "binding alone sends nothing")

	// drag 3 above 5
	require.NoError(t, list.Move(1, 0))
	s.Wait()
	assert.Equal(t, []string{"3", "5", "delimiter", "9"}, list.ToArray())

	// drag the delimiter to the top
	require.NoError(t, list.Move(2, 0))
	s.Wait()

	reqs := rec.all()
	require.Len(t, reqs, 2)
	assert.JSONEq(t, `{"ranked_item_ids":[3,5]}`, reqs[0].body)
	assert.JSONEq(t, `{"ranked_item_ids":[]}`, reqs[1].body)
	assert.Equal(t, "0b0c5c1e-0f7d-4a0c-9d43-6f7f2d6c1e11", reqs[0].cookie)
}

func TestSortable_MoveOutOfRange(t *testing.T) {
	calls := 0
	list := NewSortable([]string{"1", "delimiter"}, func([]string) { calls++ })

	assert.Error(t, list.Move(0, 2))
	assert.Error(t, list.Move(-1, 0))
	assert.Zero(t, calls)

	require.NoError(t, list.Move(1, 0))
	assert.Equal(t, 1, calls)
}

func TestOnReorder_DropsFailuresSilently(t *testing.T) {
	s, err := New("http://127.0.0.1:1")
	require.NoError(t, err)

	s.OnReorder([]string{"1", "delimiter"})
	s.OnReorder([]string{"1", "2"}) // no delimiter: nothing sent
	s.Wait()
}

func TestOnReorder_WithoutDelimiterSendsNothing(t *testing.T) {
	srv, rec := newServer(t)
	s, err := New(srv.URL)
	require.NoError(t, err)

	s.OnReorder([]string{"5", "3"})
	s.OnReorder([]string{"5", "x", "delimiter"})
	s.Wait()

	assert.Empty(t, rec.all())
}
