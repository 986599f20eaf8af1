package wal

type Kind string

const (
	ItemUpsert      Kind = "item_upsert"
	ItemDone        Kind = "item_done"
	BallotCreate    Kind = "ballot_create"
	RankingsReplace Kind = "rankings_replace"
)

type Record struct {
	Type     Kind   `json:"type"`
	TS       int64  `json:"ts"`
	ItemID   int    `json:"item,omitempty"`
	Title    string `json:"title,omitempty"`
	Content  string `json:"content,omitempty"`
	Done     bool   `json:"done,omitempty"`
	BallotID int    `json:"ballot,omitempty"`
	UUID     string `json:"uuid,omitempty"`
	ItemIDs  []int  `json:"items,omitempty"`
}
