package game

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/tuanpham2xx3/LOTOTET-sub000/models"
)

const (
	minPerColumn = 3
	maxPerColumn = 6

	// distributionAttempts bounds the rejection sampling of column counts.
	distributionAttempts = 1000
	// generateAttempts bounds full-ticket retries when a distribution or
	// placement attempt fails.
	generateAttempts = 5
)

// ErrDistribution is returned when rejection sampling cannot produce a
// valid column-count distribution within the attempt bound.
var ErrDistribution = errors.New("ticket: no valid column distribution found")

// Generate produces a valid lô tô ticket: 5 numbers per row, 3-6 per
// column, column values inside their fixed range and strictly increasing
// top to bottom, 45 distinct numbers total. Generation is retried from
// scratch on an internal failure rather than accepting an invalid grid.
func Generate() (models.Ticket, error) {
	var lastErr error
	for i := 0; i < generateAttempts; i++ {
		t, err := generate()
		if err != nil {
			lastErr = err
			continue
		}
		if err := Validate(t); err != nil {
			lastErr = err
			continue
		}
		return t, nil
	}
	return models.Ticket{}, fmt.Errorf("ticket generation failed after %d attempts: %w", generateAttempts, lastErr)
}

func generate() (models.Ticket, error) {
	var t models.Ticket

	counts, err := distributeColumns()
	if err != nil {
		return t, err
	}

	// Pick each column's numbers up front, ascending, so top-to-bottom
	// placement keeps columns strictly increasing.
	var cols [models.TicketCols][]int
	for c := 0; c < models.TicketCols; c++ {
		cols[c] = pickColumnNumbers(c, counts[c])
	}

	var next [models.TicketCols]int
	for r := 0; r < models.TicketRows; r++ {
		rowsLeft := models.TicketRows - r

		var forced, candidates []int
		for c := 0; c < models.TicketCols; c++ {
			remaining := len(cols[c]) - next[c]
			if remaining == 0 {
				continue
			}
			// A column with as many unplaced numbers as rows left must
			// contribute now or it can never finish.
			if remaining >= rowsLeft {
				forced = append(forced, c)
			} else {
				candidates = append(candidates, c)
			}
		}

		need := models.NumbersPerRow - len(forced)
		if need < 0 || need > len(candidates) {
			return t, fmt.Errorf("ticket: row %d cannot reach %d cells", r, models.NumbersPerRow)
		}

		rand.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
		chosen := append(forced, candidates[:need]...)

		for _, c := range chosen {
			t[r][c] = cols[c][next[c]]
			next[c]++
		}
	}

	return t, nil
}

// distributeColumns spreads the 45 cells over 9 columns with 3-6 each,
// by rejection sampling with a hard attempt bound.
func distributeColumns() ([models.TicketCols]int, error) {
	var counts [models.TicketCols]int
	for attempt := 0; attempt < distributionAttempts; attempt++ {
		sum := 0
		for c := range counts {
			counts[c] = minPerColumn + rand.Intn(maxPerColumn-minPerColumn+1)
			sum += counts[c]
		}
		if sum == models.TicketNumbers {
			return counts, nil
		}
	}
	return counts, ErrDistribution
}

// pickColumnNumbers selects n distinct numbers from column c's range,
// sorted ascending.
func pickColumnNumbers(c, n int) []int {
	lo, hi := models.ColumnRange(c)
	pool := make([]int, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		pool = append(pool, v)
	}
	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	picked := pool[:n]
	sort.Ints(picked)
	return picked
}

// Validate checks every ticket invariant.
func Validate(t models.Ticket) error {
	seen := make(map[int]bool, models.TicketNumbers)
	total := 0

	for r := 0; r < models.TicketRows; r++ {
		count := 0
		for c := 0; c < models.TicketCols; c++ {
			if t[r][c] != 0 {
				count++
			}
		}
		if count != models.NumbersPerRow {
			return fmt.Errorf("ticket: row %d has %d cells, want %d", r, count, models.NumbersPerRow)
		}
		total += count
	}

	for c := 0; c < models.TicketCols; c++ {
		lo, hi := models.ColumnRange(c)
		count := 0
		prev := 0
		for r := 0; r < models.TicketRows; r++ {
			v := t[r][c]
			if v == 0 {
				continue
			}
			count++
			if v < lo || v > hi {
				return fmt.Errorf("ticket: column %d value %d outside [%d,%d]", c, v, lo, hi)
			}
			if prev != 0 && v <= prev {
				return fmt.Errorf("ticket: column %d not strictly increasing (%d after %d)", c, v, prev)
			}
			prev = v
			if seen[v] {
				return fmt.Errorf("ticket: duplicate value %d", v)
			}
			seen[v] = true
		}
		if count < minPerColumn || count > maxPerColumn {
			return fmt.Errorf("ticket: column %d has %d cells, want %d-%d", c, count, minPerColumn, maxPerColumn)
		}
	}

	if total != models.TicketNumbers {
		return fmt.Errorf("ticket: %d cells, want %d", total, models.TicketNumbers)
	}
	return nil
}
