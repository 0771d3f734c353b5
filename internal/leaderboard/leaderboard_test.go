package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quizpit/internal/domain/entity"
)

func players(ps ...*entity.Player) map[string]*entity.Player {
	m := make(map[string]*entity.Player, len(ps))
	for _, p := range ps {
		m[p.ID] = p
	}
	return m
}

func TestBuild_SortsByScoreThenName(t *testing.T) {
	m := players(
		&entity.Player{ID: "1", DisplayName: "Boris", Score: 500},
		&entity.Player{ID: "2", DisplayName: "Anna", Score: 900},
		&entity.Player{ID: "3", DisplayName: "Anna 2", Score: 500},
	)

	entries := Build(m, false)
	require.Len(t, entries, 3)

	assert.Equal(t, "Anna", entries[0].DisplayName)
	assert.Equal(t, "Anna 2", entries[1].DisplayName)
	assert.Equal(t, "Boris", entries[2].DisplayName)
}

func TestBuild_SharedRanks(t *testing.T) {
	m := players(
		&entity.Player{ID: "1", DisplayName: "A", Score: 1000},
		&entity.Player{ID: "2", DisplayName: "B", Score: 1000},
		&entity.Player{ID: "3", DisplayName: "C", Score: 800},
		&entity.Player{ID: "4", DisplayName: "D", Score: 800},
		&entity.Player{ID: "5", DisplayName: "E", Score: 500},
	)

	entries := Build(m, false)
	require.Len(t, entries, 5)

	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 1, entries[1].Rank)
	// Следующий отличный счёт получает ранг по своей позиции, не 2.
	assert.Equal(t, 3, entries[2].Rank)
	assert.Equal(t, 3, entries[3].Rank)
	assert.Equal(t, 5, entries[4].Rank)
}

func TestBuild_MarkWinner(t *testing.T) {
	m := players(
		&entity.Player{ID: "1", DisplayName: "A", Score: 1000},
		&entity.Player{ID: "2", DisplayName: "B", Score: 1000},
		&entity.Player{ID: "3", DisplayName: "C", Score: 100},
	)

	entries := Build(m, true)
	assert.True(t, entries[0].IsWinner)
	assert.True(t, entries[1].IsWinner, "ничья на первом месте даёт нескольких победителей")
	assert.False(t, entries[2].IsWinner)

	unmarked := Build(m, false)
	for _, e := range unmarked {
		assert.False(t, e.IsWinner)
	}
}

func TestBuild_Empty(t *testing.T) {
	entries := Build(map[string]*entity.Player{}, true)
	assert.Empty(t, entries)
}
