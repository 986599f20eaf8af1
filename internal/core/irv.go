package core

// Outcome classifies an instant-runoff result.
type Outcome string

const (
	NoWinner Outcome = "no_winner"
	Tied     Outcome = "tied"
	Winner   Outcome = "winner"
)

type Count[T comparable] struct {
	Item  T   `json:"item"`
	Votes int `json:"votes"`
}

// Round is the tally of one runoff round and the items it knocked out.
type Round[T comparable] struct {
	Counts     []Count[T] `json:"counts"`
	Eliminated []T        `json:"eliminated,omitempty"`
}

type Result[T comparable] struct {
	Outcome Outcome    `json:"outcome"`
	Winners []T        `json:"winners"`
	Rounds  []Round[T] `json:"rounds"`
}

// InstantRunoff elects the best option from ranked ballots.
//
// Every round counts each ballot's highest option that has not been eliminated.
// A single option with the most votes wins. When all counted options have the
// same number of votes the poll is tied. Otherwise every option with the fewest
// votes is eliminated and the count repeats. The winner is not guaranteed to
// hold a majority of the ballots.
func InstantRunoff[T comparable](ballots [][]T) Result[T] {
	eliminated := make(map[T]struct{})
	res := Result[T]{Winners: []T{}, Rounds: []Round[T]{}}
	for {
		t := newTally[T]()
		for _, ballot := range ballots {
			for _, opt := range ballot {
				if _, out := eliminated[opt]; !out {
					t.Add(opt)
					break
				}
			}
		}
		if t.Len() == 0 {
			res.Outcome = NoWinner
			return res
		}
		t.seal()

		round := Round[T]{Counts: t.Counts()}
		best := t.Best()
		if len(best) == 1 {
			res.Rounds = append(res.Rounds, round)
			res.Outcome = Winner
			res.Winners = best
			return res
		}
		if t.maxCnt == t.minCnt {
			res.Rounds = append(res.Rounds, round)
			res.Outcome = Tied
			res.Winners = best
			return res
		}

		worst := t.Worst()
		for _, opt := range worst {
			eliminated[opt] = struct{}{}
		}
		round.Eliminated = worst
		res.Rounds = append(res.Rounds, round)
	}
}

// GroupBallots turns rankings sorted by ballot then ord into one preference list per ballot.
func GroupBallots(rankings []Ranking) [][]ItemID {
	var ballots [][]ItemID
	lastBallot := 0
	for i, r := range rankings {
		if i == 0 || r.Ballot.ID != lastBallot {
			ballots = append(ballots, nil)
			lastBallot = r.Ballot.ID
		}
		cur := len(ballots) - 1
		ballots[cur] = append(ballots[cur], r.Item.ID)
	}
	return ballots
}
