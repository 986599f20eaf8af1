// Package postgres stores the poll in PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErronZrz/rank-poll/internal/core"
	"github.com/ErronZrz/rank-poll/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// insertBatch keeps one INSERT under the postgres bind limit (3 binds per ranking).
const insertBatch = (1 << 16) / 3

type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ storage.Store = (*Repository)(nil)

// Connect opens and pings the database, then migrates the schema.
func Connect(dsn string, logger *zap.Logger) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{})
	if err != nil {
		if db != nil {
			if sqlDB, derr := db.DB(); derr == nil {
				_ = sqlDB.Close()
			}
		}
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	r := NewRepository(db, logger)
	if err := r.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return r, nil
}

func NewRepository(db *gorm.DB, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: db, logger: logger}
}

func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&itemModel{}, &ballotModel{}, &rankingModel{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- items ---

func (r *Repository) FindRankedByBallot(ctx context.Context, ballotID int) ([]core.Item, error) {
	var rows []itemModel
	err := r.db.WithContext(ctx).
		Table("items").
		Select("items.id, items.title, items.content, items.done").
		Joins("INNER JOIN rankings ON items.id = rankings.item_id").
		Where("NOT items.done AND rankings.ballot_id = ?", ballotID).
		Order("rankings.ord ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, r.logError("poll_repo_find_ranked_failed", err, zap.Int("ballot_id", ballotID))
	}
	return toItems(rows), nil
}

func (r *Repository) FindUnrankedByBallot(ctx context.Context, ballotID int) ([]core.Item, error) {
	var rows []itemModel
	err := r.db.WithContext(ctx).
		Table("items").
		Select("items.id, items.title, items.content, items.done").
		Joins("LEFT JOIN rankings ON items.id = rankings.item_id AND rankings.ballot_id = ?", ballotID).
		Where("NOT items.done AND rankings.ballot_id IS NULL").
		Order("items.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, r.logError("poll_repo_find_unranked_failed", err, zap.Int("ballot_id", ballotID))
	}
	return toItems(rows), nil
}

func (r *Repository) List(ctx context.Context) ([]core.Item, error) {
	var rows []itemModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("poll_repo_list_items_failed", err)
	}
	return toItems(rows), nil
}

func (r *Repository) Get(ctx context.Context, id core.ItemID) (core.Item, error) {
	var row itemModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.Item{}, storage.ErrNotFound
		}
		return core.Item{}, r.logError("poll_repo_get_item_failed", err, zap.Int("item_id", id))
	}
	return row.toEntity(), nil
}

func (r *Repository) Upsert(ctx context.Context, item core.Item) error {
	row := itemModelFromEntity(item)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "content", "done"}),
	}).Create(&row).Error
	if err != nil {
		return r.logError("poll_repo_upsert_item_failed", err, zap.Int("item_id", item.ID))
	}
	return nil
}

func (r *Repository) SetDone(ctx context.Context, id core.ItemID, done bool) error {
	res := r.db.WithContext(ctx).Model(&itemModel{}).Where("id = ?", id).Update("done", done)
	if res.Error != nil {
		return r.logError("poll_repo_set_done_failed", res.Error, zap.Int("item_id", id))
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- ballots ---

func (r *Repository) FindByUUID(ctx context.Context, u uuid.UUID) (core.Ballot, error) {
	var row ballotModel
	err := r.db.WithContext(ctx).Where("uuid = ?", u).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.Ballot{}, storage.ErrNotFound
		}
		return core.Ballot{}, r.logError("poll_repo_find_ballot_failed", err, zap.String("uuid", u.String()))
	}
	return core.Ballot{ID: row.ID, UUID: row.UUID}, nil
}

func (r *Repository) SaveIgnoringConflict(ctx context.Context, u uuid.UUID) error {
	row := ballotModel{UUID: u}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uuid"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return r.logError("poll_repo_save_ballot_failed", err, zap.String("uuid", u.String()))
	}
	return nil
}

// --- rankings ---

func (r *Repository) All(ctx context.Context) ([]core.Ranking, error) {
	var rows []joinedRanking
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			rankings.id AS id,
			rankings.ord AS ord,
			items.id AS item_id,
			items.title AS item_title,
			items.content AS item_content,
			items.done AS item_done,
			ballots.id AS ballot_id,
			ballots.uuid AS ballot_uuid
		FROM rankings
		INNER JOIN items ON rankings.item_id = items.id
		INNER JOIN ballots ON rankings.ballot_id = ballots.id
		WHERE NOT items.done
		ORDER BY rankings.ballot_id ASC, rankings.ord ASC`).
		Scan(&rows).Error
	if err != nil {
		return nil, r.logError("poll_repo_list_rankings_failed", err)
	}
	out := make([]core.Ranking, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) ReplaceBallotRankings(ctx context.Context, ballotID int, rankings []core.NewRanking) error {
	rows := make([]rankingModel, 0, len(rankings))
	for _, nr := range rankings {
		rows = append(rows, rankingModel{Ord: nr.Ord, ItemID: nr.ItemID, BallotID: ballotID})
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ballot_id = ?", ballotID).Delete(&rankingModel{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(&rows, insertBatch).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return r.logError("poll_repo_replace_rankings_failed", err,
			zap.Int("ballot_id", ballotID),
			zap.Int("rankings", len(rankings)),
		)
	}
	return nil
}

func toItems(rows []itemModel) []core.Item {
	out := make([]core.Item, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out
}

func (r *Repository) logError(event string, err error, fields ...zap.Field) error {
	fields = append(fields,
		zap.String("event", event),
		zap.String("layer", "adapter"),
		zap.Error(err),
	)
	r.logger.Error("poll repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
