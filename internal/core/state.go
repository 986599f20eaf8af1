package core

import (
	"sort"
	"sync"
	"time"

	"github.com/ErronZrz/rank-poll/internal/util"
	"github.com/google/uuid"
)

type rankEntry struct {
	ID     int    `json:"id"`
	ItemID ItemID `json:"item_id"`
}

// State is the whole poll held in memory: items, ballots and each ballot's ordering.
type State struct {
	mu sync.RWMutex

	items   map[ItemID]Item
	ballots map[uuid.UUID]Ballot
	byID    map[int]Ballot

	// ballot id -> rankings in ord order
	rankings map[int][]rankEntry

	nextBallotID  int
	nextRankingID int

	clock util.Clock
}

func NewState(clock util.Clock) *State {
	return &State{
		items:         make(map[ItemID]Item),
		ballots:       make(map[uuid.UUID]Ballot),
		byID:          make(map[int]Ballot),
		rankings:      make(map[int][]rankEntry),
		nextBallotID:  1,
		nextRankingID: 1,
		clock:         clock,
	}
}

// --- items ---

func (s *State) GetItems() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *State) Item(id ItemID) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	return it, ok
}

func (s *State) UpsertItem(it Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.ID] = it
}

// SetItemDone reports false when the item does not exist.
func (s *State) SetItemDone(id ItemID, done bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return false
	}
	it.Done = done
	s.items[id] = it
	return true
}

// --- ballots ---

func (s *State) BallotByUUID(u uuid.UUID) (Ballot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.ballots[u]
	return b, ok
}

// RegisterBallot creates a ballot for u unless one exists. created is false for an existing uuid.
func (s *State) RegisterBallot(u uuid.UUID) (b Ballot, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.ballots[u]; ok {
		return b, false
	}
	b = Ballot{ID: s.nextBallotID, UUID: u}
	s.putBallotLocked(b)
	return b, true
}

// PeekBallotID is the id the next registered ballot will receive.
func (s *State) PeekBallotID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextBallotID
}

// RestoreBallot inserts a ballot under a known id (registration and recovery).
func (s *State) RestoreBallot(b Ballot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putBallotLocked(b)
}

func (s *State) putBallotLocked(b Ballot) {
	s.ballots[b.UUID] = b
	s.byID[b.ID] = b
	if b.ID >= s.nextBallotID {
		s.nextBallotID = b.ID + 1
	}
}

// --- rankings ---

// ReplaceRankings swaps the whole ordering of a ballot in one step.
func (s *State) ReplaceRankings(ballotID int, ids []ItemID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ids) == 0 {
		delete(s.rankings, ballotID)
		return
	}
	entries := make([]rankEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, rankEntry{ID: s.nextRankingID, ItemID: id})
		s.nextRankingID++
	}
	s.rankings[ballotID] = entries
}

// RankedItems lists the open items a ballot ranked, best first.
func (s *State) RankedItems(ballotID int) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Item
	for _, e := range s.rankings[ballotID] {
		if it, ok := s.items[e.ItemID]; ok && !it.Done {
			out = append(out, it)
		}
	}
	return out
}

// UnrankedItems lists the open items a ballot has not ranked, by id.
func (s *State) UnrankedItems(ballotID int) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ranked := make(map[ItemID]struct{}, len(s.rankings[ballotID]))
	for _, e := range s.rankings[ballotID] {
		ranked[e.ItemID] = struct{}{}
	}
	var out []Item
	for id, it := range s.items {
		if _, ok := ranked[id]; ok || it.Done {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Rankings returns every ranking of an open item, sorted by ballot id then ord.
func (s *State) Rankings() []Ranking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ballotIDs := make([]int, 0, len(s.rankings))
	for id := range s.rankings {
		ballotIDs = append(ballotIDs, id)
	}
	sort.Ints(ballotIDs)

	var out []Ranking
	for _, bid := range ballotIDs {
		b := s.byID[bid]
		for ord, e := range s.rankings[bid] {
			it, ok := s.items[e.ItemID]
			if !ok || it.Done {
				continue
			}
			out = append(out, Ranking{ID: e.ID, Ord: ord, Item: it, Ballot: b})
		}
	}
	return out
}

// --- snapshot support ---

// Dump is a point-in-time copy of State.
type Dump struct {
	Items         []Item              `json:"items"`
	Ballots       []Ballot            `json:"ballots"`
	Rankings      map[int][]rankEntry `json:"rankings"`
	NextRankingID int                 `json:"next_ranking_id"`
}

func (s *State) Dump() Dump {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := Dump{
		Items:         make([]Item, 0, len(s.items)),
		Ballots:       make([]Ballot, 0, len(s.byID)),
		Rankings:      make(map[int][]rankEntry, len(s.rankings)),
		NextRankingID: s.nextRankingID,
	}
	for _, it := range s.items {
		d.Items = append(d.Items, it)
	}
	for _, b := range s.byID {
		d.Ballots = append(d.Ballots, b)
	}
	for id, entries := range s.rankings {
		d.Rankings[id] = append([]rankEntry(nil), entries...)
	}
	return d
}

// Load replaces the whole state with d.
func (s *State) Load(d Dump) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[ItemID]Item, len(d.Items))
	s.ballots = make(map[uuid.UUID]Ballot, len(d.Ballots))
	s.byID = make(map[int]Ballot, len(d.Ballots))
	s.rankings = make(map[int][]rankEntry, len(d.Rankings))
	s.nextBallotID = 1
	s.nextRankingID = d.NextRankingID
	if s.nextRankingID < 1 {
		s.nextRankingID = 1
	}
	for _, it := range d.Items {
		s.items[it.ID] = it
	}
	for _, b := range d.Ballots {
		s.putBallotLocked(b)
	}
	for id, entries := range d.Rankings {
		s.rankings[id] = append([]rankEntry(nil), entries...)
	}
}

// NowSec 辅助：面向 WAL 时间戳
func (s *State) NowSec() int64 {
	if s.clock != nil {
		return s.clock.Now().Unix()
	}
	return time.Now().Unix()
}
