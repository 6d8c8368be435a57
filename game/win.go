package game

import (
	"math/rand"

	"github.com/tuanpham2xx3/LOTOTET-sub000/models"
)

// RowComplete reports whether a row holds exactly the full 5 numbers and
// every one of them is marked.
func RowComplete(t models.Ticket, marks models.Marks, row int) bool {
	count := 0
	for c := 0; c < models.TicketCols; c++ {
		if t[row][c] == 0 {
			continue
		}
		if !marks[row][c] {
			return false
		}
		count++
	}
	return count == models.NumbersPerRow
}

// WinningRow returns the lowest-index complete row, or -1.
func WinningRow(t models.Ticket, marks models.Marks) int {
	for r := 0; r < models.TicketRows; r++ {
		if RowComplete(t, marks, r) {
			return r
		}
	}
	return -1
}

// HasUnmarked reports whether n appears on the ticket without a mark.
// Used to reject bogus no-number claims.
func HasUnmarked(t models.Ticket, marks models.Marks, n int) bool {
	for r := 0; r < models.TicketRows; r++ {
		for c := 0; c < models.TicketCols; c++ {
			if t[r][c] == n && !marks[r][c] {
				return true
			}
		}
	}
	return false
}

// WaitingBoard lists, per player, the numbers that would complete a row
// currently sitting at 4 of 5 marks. Recomputed after every mark.
func WaitingBoard(players []*models.Player) []models.WaitingEntry {
	var board []models.WaitingEntry
	for _, p := range players {
		var numbers []int
		for r := 0; r < models.TicketRows; r++ {
			marked := 0
			missing := 0
			last := 0
			for c := 0; c < models.TicketCols; c++ {
				if p.Ticket[r][c] == 0 {
					continue
				}
				if p.Marked[r][c] {
					marked++
				} else {
					missing++
					last = p.Ticket[r][c]
				}
			}
			if marked == models.NumbersPerRow-1 && missing == 1 {
				numbers = append(numbers, last)
			}
		}
		if len(numbers) > 0 {
			board = append(board, models.WaitingEntry{
				PlayerID: p.ID,
				Name:     p.Name,
				Numbers:  numbers,
			})
		}
	}
	return board
}

// DrawNumber picks uniformly from the 90-number universe minus the
// already-drawn set. ok is false once the universe is exhausted.
func DrawNumber(drawn []int) (n int, ok bool) {
	used := make(map[int]bool, len(drawn))
	for _, d := range drawn {
		used[d] = true
	}
	remaining := make([]int, 0, models.MaxNumber-len(drawn))
	for v := 1; v <= models.MaxNumber; v++ {
		if !used[v] {
			remaining = append(remaining, v)
		}
	}
	if len(remaining) == 0 {
		return 0, false
	}
	return remaining[rand.Intn(len(remaining))], true
}
