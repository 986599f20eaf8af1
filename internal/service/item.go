package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ErronZrz/rank-poll/internal/core"
	"github.com/ErronZrz/rank-poll/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

type ItemService struct {
	items storage.ItemRepository
	// changed runs after an edit that can move the poll result.
	changed func(ctx context.Context)
}

func NewItemService(items storage.ItemRepository, changed func(ctx context.Context)) *ItemService {
	if changed == nil {
		changed = func(context.Context) {}
	}
	return &ItemService{items: items, changed: changed}
}

// BallotItems loads a ballot's ranked and unranked items concurrently.
func (s *ItemService) BallotItems(ctx context.Context, ballotID int) (ranked, unranked []core.Item, err error) {
	ctx, span := startSpan(ctx, "ItemService.BallotItems")
	span.SetAttributes(attribute.Int("ballot.id", ballotID))
	defer func() { endSpan(span, err) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ranked, err = s.items.FindRankedByBallot(gctx, ballotID)
		return err
	})
	g.Go(func() error {
		var err error
		unranked, err = s.items.FindUnrankedByBallot(gctx, ballotID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return ranked, unranked, nil
}

func (s *ItemService) List(ctx context.Context) (items []core.Item, err error) {
	ctx, span := startSpan(ctx, "ItemService.List")
	defer func() { endSpan(span, err) }()
	return s.items.List(ctx)
}

func (s *ItemService) Save(ctx context.Context, it core.Item) (err error) {
	ctx, span := startSpan(ctx, "ItemService.Save")
	defer func() { endSpan(span, err) }()

	it.Title = strings.TrimSpace(it.Title)
	if it.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidItem)
	}
	if it.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidItem)
	}
	if err := s.items.Upsert(ctx, it); err != nil {
		return err
	}
	s.changed(ctx)
	return nil
}

// MarkDone takes an item out of (or back into) the poll. Unknown ids give storage.ErrNotFound.
func (s *ItemService) MarkDone(ctx context.Context, id core.ItemID, done bool) (err error) {
	ctx, span := startSpan(ctx, "ItemService.MarkDone")
	span.SetAttributes(attribute.Int("item.id", id), attribute.Bool("item.done", done))
	defer func() { endSpan(span, err) }()

	if err := s.items.SetDone(ctx, id, done); err != nil {
		return err
	}
	s.changed(ctx)
	return nil
}
