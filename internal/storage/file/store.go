// Package file keeps the poll in memory and makes it durable with a
// group-commit write-ahead log plus periodic snapshots.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ErronZrz/rank-poll/internal/core"
	"github.com/ErronZrz/rank-poll/internal/persistence/snapshot"
	"github.com/ErronZrz/rank-poll/internal/persistence/wal"
	"github.com/ErronZrz/rank-poll/internal/storage"
	"github.com/ErronZrz/rank-poll/internal/util"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Options struct {
	DataDir       string
	GroupCommit   time.Duration
	GroupBatch    int
	Clock         util.Clock
	Logger        *zap.Logger
	SnapshotStore snapshot.Store
}

type Store struct {
	// writeMu keeps WAL order and memory order identical.
	writeMu sync.Mutex

	state    *core.State
	wal      *wal.Log
	snaps    snapshot.Store
	snapPath string
	logger   *zap.Logger
}

var _ storage.Store = (*Store)(nil)

// Open restores the poll from the latest snapshot and the WAL written after it.
func Open(opts Options) (*Store, error) {
	if opts.DataDir == "" {
		return nil, errors.New("data dir is required")
	}
	if opts.Clock == nil {
		opts.Clock = util.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SnapshotStore == nil {
		opts.SnapshotStore = snapshot.NewFileStore()
	}

	s := &Store{
		state:    core.NewState(opts.Clock),
		snaps:    opts.SnapshotStore,
		snapPath: filepath.Join(opts.DataDir, "snapshot.json"),
		logger:   opts.Logger,
	}
	walPath := filepath.Join(opts.DataDir, "wal.log")

	// 1) 读取快照
	var offset int64
	snap, err := s.snaps.Load(s.snapPath)
	switch {
	case err == nil:
		s.state.Load(snap.State)
		offset = snap.WALOffset
	case errors.Is(err, os.ErrNotExist):
		// 无快照：空状态
	default:
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	// 2) 从 offset 重放 WAL
	replayed := 0
	end, err := wal.ReplayFile(walPath, offset, func(rec wal.Record, _ int64) error {
		replayed++
		return s.apply(rec)
	})
	if err != nil {
		return nil, fmt.Errorf("replay wal: %w", err)
	}
	if err := truncateTail(walPath, end); err != nil {
		return nil, fmt.Errorf("truncate wal: %w", err)
	}

	s.wal, err = wal.OpenLog(walPath, opts.GroupCommit, opts.GroupBatch)
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}
	s.logger.Info("file store restored",
		zap.String("dir", opts.DataDir),
		zap.Int64("wal_offset", offset),
		zap.Int("replayed", replayed),
	)
	return s, nil
}

// truncateTail drops a torn record left by a crash so new records start on a clean line.
func truncateTail(path string, end int64) error {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if st.Size() <= end {
		return nil
	}
	return os.Truncate(path, end)
}

func (s *Store) apply(rec wal.Record) error {
	switch rec.Type {
	case wal.ItemUpsert:
		s.state.UpsertItem(core.Item{ID: rec.ItemID, Title: rec.Title, Content: rec.Content, Done: rec.Done})
	case wal.ItemDone:
		s.state.SetItemDone(rec.ItemID, rec.Done)
	case wal.BallotCreate:
		u, err := uuid.Parse(rec.UUID)
		if err != nil {
			return fmt.Errorf("ballot %d: %w", rec.BallotID, err)
		}
		s.state.RestoreBallot(core.Ballot{ID: rec.BallotID, UUID: u})
	case wal.RankingsReplace:
		s.state.ReplaceRankings(rec.BallotID, rec.ItemIDs)
	default:
		s.logger.Warn("unknown wal record", zap.String("type", string(rec.Type)))
	}
	return nil
}

// --- items ---

func (s *Store) FindRankedByBallot(_ context.Context, ballotID int) ([]core.Item, error) {
	return s.state.RankedItems(ballotID), nil
}

func (s *Store) FindUnrankedByBallot(_ context.Context, ballotID int) ([]core.Item, error) {
	return s.state.UnrankedItems(ballotID), nil
}

func (s *Store) List(_ context.Context) ([]core.Item, error) {
	return s.state.GetItems(), nil
}

func (s *Store) Get(_ context.Context, id core.ItemID) (core.Item, error) {
	it, ok := s.state.Item(id)
	if !ok {
		return core.Item{}, storage.ErrNotFound
	}
	return it, nil
}

func (s *Store) Upsert(_ context.Context, item core.Item) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	// 1) WAL 先行
	if err := s.wal.AppendItemUpsert(item.ID, item.Title, item.Content, item.Done, s.state.NowSec()); err != nil {
		return fmt.Errorf("wal append: %w", err)
	}
	// 2) 内存更新
	s.state.UpsertItem(item)
	return nil
}

func (s *Store) SetDone(_ context.Context, id core.ItemID, done bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, ok := s.state.Item(id); !ok {
		return storage.ErrNotFound
	}
	if err := s.wal.AppendItemDone(id, done, s.state.NowSec()); err != nil {
		return fmt.Errorf("wal append: %w", err)
	}
	s.state.SetItemDone(id, done)
	return nil
}

// --- ballots ---

func (s *Store) FindByUUID(_ context.Context, u uuid.UUID) (core.Ballot, error) {
	b, ok := s.state.BallotByUUID(u)
	if !ok {
		return core.Ballot{}, storage.ErrNotFound
	}
	return b, nil
}

func (s *Store) SaveIgnoringConflict(_ context.Context, u uuid.UUID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, ok := s.state.BallotByUUID(u); ok {
		return nil
	}
	// writeMu 保证登记时拿到的 id 与写入 WAL 的 id 一致
	id := s.state.PeekBallotID()
	if err := s.wal.AppendBallotCreate(id, u.String(), s.state.NowSec()); err != nil {
		return fmt.Errorf("wal append: %w", err)
	}
	if b, _ := s.state.RegisterBallot(u); b.ID != id {
		return fmt.Errorf("ballot %s registered as %d, logged as %d", u, b.ID, id)
	}
	return nil
}

// --- rankings ---

func (s *Store) All(_ context.Context) ([]core.Ranking, error) {
	return s.state.Rankings(), nil
}

func (s *Store) ReplaceBallotRankings(_ context.Context, ballotID int, rankings []core.NewRanking) error {
	ids := make([]core.ItemID, len(rankings))
	for i, r := range rankings {
		if r.BallotID != ballotID {
			return fmt.Errorf("ranking for ballot %d in replace of ballot %d", r.BallotID, ballotID)
		}
		ids[i] = r.ItemID
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.wal.AppendRankings(ballotID, ids, s.state.NowSec()); err != nil {
		return fmt.Errorf("wal append: %w", err)
	}
	s.state.ReplaceRankings(ballotID, ids)
	return nil
}

// --- snapshot / lifecycle ---

// Snapshot persists the whole state and the WAL offset it covers.
func (s *Store) Snapshot() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	// 1) 先确保 WAL 已经持久
	if err := s.wal.SyncNow(); err != nil {
		return err
	}
	// 2) WAL 当前大小作为 walOffset
	offset, err := s.wal.Size()
	if err != nil {
		return err
	}
	snap := &snapshot.Snapshot{
		WALOffset: offset,
		TakenAt:   time.Now().UTC(),
		State:     s.state.Dump(),
	}
	// 3) 原子写入
	if err := s.snaps.Save(s.snapPath, snap); err != nil {
		return err
	}
	s.logger.Debug("snapshot saved", zap.Int64("wal_offset", offset), zap.Int("items", len(snap.State.Items)))
	return nil
}

func (s *Store) Close() error {
	// 最后一张快照（容错）
	if err := s.Snapshot(); err != nil {
		s.logger.Warn("final snapshot failed", zap.Error(err))
	}
	return s.wal.Close()
}
