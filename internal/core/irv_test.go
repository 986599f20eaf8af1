package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstantRunoff_Basic(t *testing.T) {
	ballots := [][]string{
		{"bob", "bill", "sue"},
		{"sue", "bob", "bill"},
		{"bill", "sue", "bob"},
		{"bob", "bill", "sue"},
		{"sue", "bob", "bill"},
	}

	res := InstantRunoff(ballots)

	require.Equal(t, Winner, res.Outcome)
	assert.Equal(t, []string{"sue"}, res.Winners)
	require.Len(t, res.Rounds, 2)
	assert.Equal(t, []string{"bill"}, res.Rounds[0].Eliminated)
	assert.Equal(t, []Count[string]{{Item: "sue", Votes: 3}, {Item: "bob", Votes: 2}}, res.Rounds[1].Counts)
}

func TestInstantRunoff_Tied(t *testing.T) {
	t.Run("single preferences", func(t *testing.T) {
		res := InstantRunoff([][]string{{"bob"}, {"sue"}})
		require.Equal(t, Tied, res.Outcome)
		assert.ElementsMatch(t, []string{"bob", "sue"}, res.Winners)
	})

	t.Run("mirrored preferences", func(t *testing.T) {
		res := InstantRunoff([][]string{{"bob", "sue"}, {"sue", "bob"}})
		require.Equal(t, Tied, res.Outcome)
		assert.ElementsMatch(t, []string{"bob", "sue"}, res.Winners)
	})
}

func TestInstantRunoff_NoVotes(t *testing.T) {
	res := InstantRunoff[string](nil)
	assert.Equal(t, NoWinner, res.Outcome)
	assert.Empty(t, res.Winners)

	res = InstantRunoff([][]string{{}, {}})
	assert.Equal(t, NoWinner, res.Outcome)
}

func TestInstantRunoff_EliminatesAllLowest(t *testing.T) {
	ballots := [][]int{
		{1}, {1},
		{2, 1}, {2, 1},
		{3, 2}, {4, 2},
	}

	res := InstantRunoff(ballots)

	require.Equal(t, Winner, res.Outcome)
	// 3 and 4 go out together and their votes move to 2.
	assert.ElementsMatch(t, []int{3, 4}, res.Rounds[0].Eliminated)
	assert.Equal(t, []int{2}, res.Winners)
}

func TestInstantRunoff_ExhaustedBallots(t *testing.T) {
	ballots := [][]int{{1}, {1}, {2}, {2}, {3}}

	res := InstantRunoff(ballots)

	require.Equal(t, Tied, res.Outcome)
	assert.Equal(t, []int{1, 2}, res.Winners)
	require.Len(t, res.Rounds, 2)
	assert.Equal(t, []int{3}, res.Rounds[0].Eliminated)
}

func TestGroupBallots(t *testing.T) {
	b1 := Ballot{ID: 1, UUID: uuid.New()}
	b2 := Ballot{ID: 4, UUID: uuid.New()}
	rankings := []Ranking{
		{Ord: 0, Item: Item{ID: 5}, Ballot: b1},
		{Ord: 1, Item: Item{ID: 3}, Ballot: b1},
		{Ord: 0, Item: Item{ID: 9}, Ballot: b2},
	}

	assert.Equal(t, [][]ItemID{{5, 3}, {9}}, GroupBallots(rankings))
	assert.Empty(t, GroupBallots(nil))
}

func TestNewRankings(t *testing.T) {
	got := NewRankings(2, []ItemID{5, 3})
	assert.Equal(t, []NewRanking{
		{Ord: 0, ItemID: 5, BallotID: 2},
		{Ord: 1, ItemID: 3, BallotID: 2},
	}, got)
}
