// Package leaderboard строит детерминированный рейтинг игроков сессии.
package leaderboard

import (
	"sort"

	"github.com/yourusername/quizpit/internal/domain/entity"
)

// Entry — одна строка таблицы результатов, как она уходит клиентам.
type Entry struct {
	Rank         int    `json:"rank"`
	DisplayName  string `json:"display_name"`
	Score        int    `json:"score"`
	CorrectCount int    `json:"correct_count"`
	IsWinner     bool   `json:"is_winner,omitempty"`
}

// Build сортирует игроков по убыванию счёта, при равенстве — по имени в
// порядке кодовых точек. Равные счёты делят один ранг; следующий отличный
// счёт получает ранг, равный своей позиции (1-based). При markWinner все
// записи с рангом 1 помечаются победителями, поэтому ничья на вершине даёт
// нескольких победителей.
//
// Отключённые игроки остаются в таблице: их счёт и история ответов живут
// до истечения окна переподключения.
func Build(players map[string]*entity.Player, markWinner bool) []Entry {
	entries := make([]Entry, 0, len(players))
	for _, p := range players {
		entries = append(entries, Entry{
			DisplayName:  p.DisplayName,
			Score:        p.Score,
			CorrectCount: p.CorrectCount,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})

	for i := range entries {
		switch {
		case i == 0:
			entries[i].Rank = 1
		case entries[i].Score == entries[i-1].Score:
			entries[i].Rank = entries[i-1].Rank
		default:
			entries[i].Rank = i + 1
		}
		if markWinner && entries[i].Rank == 1 {
			entries[i].IsWinner = true
		}
	}

	return entries
}
