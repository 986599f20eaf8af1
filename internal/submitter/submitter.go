// Package submitter turns a reordered ballot list into a ranking submission
// and posts it to the poll server.
package submitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"strconv"
	"sync"

	"github.com/ErronZrz/rank-poll/internal/core"
	"go.uber.org/zap"
)

const BallotPath = "/ballot"

var (
	ErrMissingDelimiter = errors.New("delimiter not found")
	ErrInvalidItemID    = errors.New("invalid item id")
)

// Submission is the body of POST /ballot.
type Submission struct {
	RankedItemIDs []int `json:"ranked_item_ids"`
}

// RankedItemIDs parses the entries before the delimiter as base-10 item ids.
func RankedItemIDs(order []string) ([]int, error) {
	end := slices.Index(order, core.Delimiter)
	if end < 0 {
		return nil, ErrMissingDelimiter
	}
	ids := make([]int, 0, end)
	for _, raw := range order[:end] {
		id, err := strconv.ParseInt(raw, 10, strconv.IntSize)
		if err != nil {
			return nil, fmt.Errorf("%w %q", ErrInvalidItemID, raw)
		}
		ids = append(ids, int(id))
	}
	return ids, nil
}

type Submitter struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger

	wg sync.WaitGroup
}

type Option func(*Submitter)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Submitter) { s.client = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Submitter) { s.logger = l }
}

// New targets the poll server at baseURL.
func New(baseURL string, opts ...Option) (*Submitter, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("server url %q needs scheme and host", baseURL)
	}
	s := &Submitter{
		endpoint: base.JoinPath(BallotPath).String(),
		client:   http.DefaultClient,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewSessionClient returns a client that presents ballotUUID as the session cookie
// to baseURL and keeps any cookie the server sets.
func NewSessionClient(baseURL, ballotUUID string) (*http.Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if ballotUUID != "" {
		jar.SetCookies(base, []*http.Cookie{{Name: core.SessionCookie, Value: ballotUUID, Path: "/"}})
	}
	return &http.Client{Jar: jar}, nil
}

// Bind makes ids sortable with OnReorder as the end-of-drag handler.
func (s *Submitter) Bind(ids []string) *Sortable {
	return NewSortable(ids, s.OnReorder)
}

// OnReorder handles the end of a drag: it posts the ranked part of order in the
// background and never reports the outcome. Orders that cannot be parsed send nothing.
func (s *Submitter) OnReorder(order []string) {
	ids, err := RankedItemIDs(order)
	if err != nil {
		s.logger.Debug("reorder not submitted", zap.Strings("order", order), zap.Error(err))
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Submit(context.Background(), ids); err != nil {
			s.logger.Debug("ranking submission dropped", zap.Error(err))
		}
	}()
}

// Wait blocks until background submissions have finished.
func (s *Submitter) Wait() { s.wg.Wait() }

// Submit posts ids to the ballot endpoint, following redirects.
func (s *Submitter) Submit(ctx context.Context, ids []int) error {
	if ids == nil {
		ids = []int{}
	}
	body, err := json.Marshal(Submission{RankedItemIDs: ids})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post ballot: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("post ballot: %s", resp.Status)
	}
	s.logger.Debug("ranking submitted", zap.Ints("ranked_item_ids", ids), zap.Int("status", resp.StatusCode))
	return nil
}
