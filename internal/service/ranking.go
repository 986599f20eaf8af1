package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ErronZrz/rank-poll/internal/core"
	"github.com/ErronZrz/rank-poll/internal/storage"
	"github.com/ErronZrz/rank-poll/internal/util"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type RankingService struct {
	rankings storage.RankingRepository
	items    storage.ItemRepository
	cache    ResultCache
	logger   *zap.Logger

	mu        sync.RWMutex
	listeners []func(PollResult)

	// gen counts changes. A tally may only be cached when no change
	// happened since it started reading; cacheMu orders Set against Invalidate.
	cacheMu sync.Mutex
	gen     uint64
}

// NewRankingService builds the service; cache may be nil.
func NewRankingService(rankings storage.RankingRepository, items storage.ItemRepository, cache ResultCache, logger *zap.Logger) *RankingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingService{rankings: rankings, items: items, cache: cache, logger: logger}
}

// OnResult registers fn to receive the recomputed result after every change.
func (s *RankingService) OnResult(fn func(PollResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Result runs instant-runoff voting over every ballot.
func (s *RankingService) Result(ctx context.Context) (res *PollResult, err error) {
	ctx, span := startSpan(ctx, "RankingService.Result")
	defer func() { endSpan(span, err) }()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("result cache read failed", zap.Error(err))
		} else if cached != nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
	}

	s.cacheMu.Lock()
	gen := s.gen
	s.cacheMu.Unlock()

	rankings, err := s.rankings.All(ctx)
	if err != nil {
		return nil, err
	}
	res = tallyRankings(rankings)
	span.SetAttributes(
		attribute.String("poll.outcome", string(res.Outcome)),
		attribute.Int("poll.rounds", len(res.Rounds)),
	)

	if s.cache != nil {
		s.storeResult(ctx, gen, res)
	}
	return res, nil
}

// BestItem is the poll winner, or nil when there is no vote or the poll is tied.
func (s *RankingService) BestItem(ctx context.Context) (*core.Item, error) {
	res, err := s.Result(ctx)
	if err != nil {
		return nil, err
	}
	if res.Outcome != core.Winner || len(res.Winners) == 0 {
		return nil, nil
	}
	best := res.Winners[0]
	return &best, nil
}

// UpdateBallotRankings replaces a ballot's ordering with ids, best first.
// Every id must name a distinct open item.
func (s *RankingService) UpdateBallotRankings(ctx context.Context, ballotID int, ids []core.ItemID) (err error) {
	ctx, span := startSpan(ctx, "RankingService.UpdateBallotRankings")
	span.SetAttributes(attribute.Int("ballot.id", ballotID), attribute.Int("rankings", len(ids)))
	defer func() { endSpan(span, err) }()

	if err := s.validate(ctx, ids); err != nil {
		return err
	}
	if err := s.rankings.ReplaceBallotRankings(ctx, ballotID, core.NewRankings(ballotID, ids)); err != nil {
		return err
	}
	s.logger.Debug("ballot rankings updated", zap.Int("ballot_id", ballotID), zap.Ints("item_ids", ids))
	s.Changed(ctx)
	return nil
}

func (s *RankingService) validate(ctx context.Context, ids []core.ItemID) error {
	seen := util.NewSet[core.ItemID]()
	for _, id := range ids {
		if id <= 0 {
			return fmt.Errorf("%w: item id %d", ErrInvalidRanking, id)
		}
		if seen.Has(id) {
			return fmt.Errorf("%w: item %d ranked twice", ErrInvalidRanking, id)
		}
		seen.Add(id)

		it, err := s.items.Get(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: unknown item %d", ErrInvalidRanking, id)
			}
			return err
		}
		if it.Done {
			return fmt.Errorf("%w: item %d is closed", ErrInvalidRanking, id)
		}
	}
	return nil
}

// storeResult caches res unless a change landed after its tally began.
func (s *RankingService) storeResult(ctx context.Context, gen uint64, res *PollResult) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if gen != s.gen {
		s.logger.Debug("stale tally not cached", zap.Uint64("gen", gen), zap.Uint64("current", s.gen))
		return
	}
	if err := s.cache.Set(ctx, res); err != nil {
		s.logger.Warn("result cache write failed", zap.Error(err))
	}
}

// Changed drops the cached result and pushes a fresh one to listeners.
func (s *RankingService) Changed(ctx context.Context) {
	s.cacheMu.Lock()
	s.gen++
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("result cache invalidate failed", zap.Error(err))
		}
	}
	s.cacheMu.Unlock()

	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()
	if len(listeners) == 0 {
		return
	}

	res, err := s.Result(ctx)
	if err != nil {
		s.logger.Warn("result recompute failed", zap.Error(err))
		return
	}
	for _, fn := range listeners {
		fn(*res)
	}
}

// tallyRankings runs the runoff on item ids and maps the outcome back to items.
func tallyRankings(rankings []core.Ranking) *PollResult {
	byID := make(map[core.ItemID]core.Item, len(rankings))
	for _, r := range rankings {
		byID[r.Item.ID] = r.Item
	}
	ids := core.InstantRunoff(core.GroupBallots(rankings))

	toItems := func(in []core.ItemID) []core.Item {
		if in == nil {
			return nil
		}
		out := make([]core.Item, 0, len(in))
		for _, id := range in {
			out = append(out, byID[id])
		}
		return out
	}
	res := &PollResult{
		Outcome: ids.Outcome,
		Winners: toItems(ids.Winners),
		Rounds:  make([]core.Round[core.Item], 0, len(ids.Rounds)),
	}
	for _, r := range ids.Rounds {
		round := core.Round[core.Item]{
			Counts:     make([]core.Count[core.Item], 0, len(r.Counts)),
			Eliminated: toItems(r.Eliminated),
		}
		for _, c := range r.Counts {
			round.Counts = append(round.Counts, core.Count[core.Item]{Item: byID[c.Item], Votes: c.Votes})
		}
		res.Rounds = append(res.Rounds, round)
	}
	return res
}
