// Package storage defines the repositories the poll services read and write.
package storage

import (
	"context"
	"errors"

	"github.com/ErronZrz/rank-poll/internal/core"
	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")
)

type ItemRepository interface {
	// FindRankedByBallot lists the open items ranked on a ballot, best first.
	FindRankedByBallot(ctx context.Context, ballotID int) ([]core.Item, error)
	// FindUnrankedByBallot lists the open items the ballot has not ranked.
	FindUnrankedByBallot(ctx context.Context, ballotID int) ([]core.Item, error)
	List(ctx context.Context) ([]core.Item, error)
	Get(ctx context.Context, id core.ItemID) (core.Item, error)
	Upsert(ctx context.Context, item core.Item) error
	SetDone(ctx context.Context, id core.ItemID, done bool) error
}

type BallotRepository interface {
	// FindByUUID returns ErrNotFound for an unknown uuid.
	FindByUUID(ctx context.Context, u uuid.UUID) (core.Ballot, error)
	// SaveIgnoringConflict creates a ballot and does nothing if the uuid already exists.
	SaveIgnoringConflict(ctx context.Context, u uuid.UUID) error
}

type RankingRepository interface {
	// All returns the rankings of open items sorted by ballot id then ord.
	All(ctx context.Context) ([]core.Ranking, error)
	// ReplaceBallotRankings atomically drops a ballot's rankings and inserts the new ones.
	ReplaceBallotRankings(ctx context.Context, ballotID int, rankings []core.NewRanking) error
}

// Store bundles every repository of one backend.
type Store interface {
	ItemRepository
	BallotRepository
	RankingRepository
	Close() error
}
