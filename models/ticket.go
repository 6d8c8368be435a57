package models

// Ticket layout constants for the 90-number lô tô card.
const (
	TicketRows    = 9
	TicketCols    = 9
	NumbersPerRow = 5
	TicketNumbers = 45 // TicketRows * NumbersPerRow
	MaxNumber     = 90
)

// Ticket is a 9x9 grid; 0 marks an empty cell.
type Ticket [TicketRows][TicketCols]int

// Marks mirrors a Ticket cell-for-cell.
type Marks [TicketRows][TicketCols]bool

// ColumnRange returns the inclusive value range of column c:
// column 0 holds 1-9, column 8 holds 80-90, the rest hold 10c..10c+9.
func ColumnRange(c int) (lo, hi int) {
	switch c {
	case 0:
		return 1, 9
	case TicketCols - 1:
		return 80, 90
	default:
		return 10 * c, 10*c + 9
	}
}

// Has reports whether n appears anywhere on the ticket.
func (t Ticket) Has(n int) bool {
	_, _, ok := t.Find(n)
	return ok
}

// Find locates n on the ticket.
func (t Ticket) Find(n int) (row, col int, ok bool) {
	if n <= 0 {
		return 0, 0, false
	}
	for r := 0; r < TicketRows; r++ {
		for c := 0; c < TicketCols; c++ {
			if t[r][c] == n {
				return r, c, true
			}
		}
	}
	return 0, 0, false
}

// RowNumbers returns the non-empty cells of a row in column order.
func (t Ticket) RowNumbers(row int) []int {
	nums := make([]int, 0, NumbersPerRow)
	for c := 0; c < TicketCols; c++ {
		if t[row][c] != 0 {
			nums = append(nums, t[row][c])
		}
	}
	return nums
}
