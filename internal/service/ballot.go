package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ErronZrz/rank-poll/internal/core"
	"github.com/ErronZrz/rank-poll/internal/storage"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type BallotService struct {
	ballots storage.BallotRepository
	logger  *zap.Logger
}

func NewBallotService(ballots storage.BallotRepository, logger *zap.Logger) *BallotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BallotService{ballots: ballots, logger: logger}
}

// Register creates a ballot for raw, or for a fresh random uuid when raw is not a valid uuid.
// An existing uuid is returned unchanged.
func (s *BallotService) Register(ctx context.Context, raw string) (u uuid.UUID, err error) {
	ctx, span := startSpan(ctx, "BallotService.Register")
	defer func() { endSpan(span, err) }()

	u, perr := uuid.Parse(strings.TrimSpace(raw))
	if perr != nil {
		u = uuid.New()
	}
	span.SetAttributes(attribute.String("ballot.uuid", u.String()))
	if err := s.ballots.SaveIgnoringConflict(ctx, u); err != nil {
		return uuid.Nil, err
	}
	s.logger.Info("ballot registered", zap.String("uuid", u.String()))
	return u, nil
}

// Find returns nil when raw is not a valid uuid or no ballot has it.
func (s *BallotService) Find(ctx context.Context, raw string) (b *core.Ballot, err error) {
	ctx, span := startSpan(ctx, "BallotService.Find")
	defer func() { endSpan(span, err) }()

	u, perr := uuid.Parse(strings.TrimSpace(raw))
	if perr != nil {
		return nil, nil
	}
	found, err := s.ballots.FindByUUID(ctx, u)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &found, nil
}
