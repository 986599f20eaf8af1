package postgres

import (
	"github.com/ErronZrz/rank-poll/internal/core"
	"github.com/google/uuid"
)

type itemModel struct {
	ID      int    `gorm:"column:id;primaryKey;autoIncrement:false"`
	Title   string `gorm:"column:title;not null"`
	Content string `gorm:"column:content;not null"`
	Done    bool   `gorm:"column:done;not null;default:false"`
}

func (itemModel) TableName() string { return "items" }

func (m itemModel) toEntity() core.Item {
	return core.Item{ID: m.ID, Title: m.Title, Content: m.Content, Done: m.Done}
}

func itemModelFromEntity(it core.Item) itemModel {
	return itemModel{ID: it.ID, Title: it.Title, Content: it.Content, Done: it.Done}
}

type ballotModel struct {
	ID   int       `gorm:"column:id;primaryKey"`
	UUID uuid.UUID `gorm:"column:uuid;type:uuid;uniqueIndex;not null"`
}

func (ballotModel) TableName() string { return "ballots" }

// rankingModel allows one item per position on a ballot. Two concurrent
// replaces of the same ballot collide on idx_rankings_ballot_ord.
type rankingModel struct {
	ID       int `gorm:"column:id;primaryKey"`
	Ord      int `gorm:"column:ord;not null;uniqueIndex:idx_rankings_ballot_ord,priority:2"`
	ItemID   int `gorm:"column:item_id;not null;index"`
	BallotID int `gorm:"column:ballot_id;not null;uniqueIndex:idx_rankings_ballot_ord,priority:1"`
}

func (rankingModel) TableName() string { return "rankings" }

// joinedRanking is one row of rankings joined with its item and ballot.
type joinedRanking struct {
	ID          int
	Ord         int
	ItemID      int
	ItemTitle   string
	ItemContent string
	ItemDone    bool
	BallotID    int
	BallotUUID  uuid.UUID
}

func (r joinedRanking) toEntity() core.Ranking {
	return core.Ranking{
		ID:  r.ID,
		Ord: r.Ord,
		Item: core.Item{
			ID:      r.ItemID,
			Title:   r.ItemTitle,
			Content: r.ItemContent,
			Done:    r.ItemDone,
		},
		Ballot: core.Ballot{ID: r.BallotID, UUID: r.BallotUUID},
	}
}
