package core

import "github.com/google/uuid"

const (
	// Delimiter is the sentinel entry separating ranked from unranked items on a ballot page.
	Delimiter = "delimiter"
	// SessionCookie carries the voter's ballot uuid.
	SessionCookie = "ballot-uuid"
)

type ItemID = int

type Item struct {
	ID      ItemID `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

type Ballot struct {
	ID   int       `json:"id"`
	UUID uuid.UUID `json:"uuid"`
}

// Ranking is one stored preference: Item sits at position Ord on Ballot.
type Ranking struct {
	ID     int    `json:"id"`
	Ord    int    `json:"ord"`
	Item   Item   `json:"item"`
	Ballot Ballot `json:"ballot"`
}

type NewRanking struct {
	Ord      int
	ItemID   ItemID
	BallotID int
}

// NewRankings numbers ids by their position.
func NewRankings(ballotID int, ids []ItemID) []NewRanking {
	out := make([]NewRanking, 0, len(ids))
	for ord, id := range ids {
		out = append(out, NewRanking{Ord: ord, ItemID: id, BallotID: ballotID})
	}
	return out
}
