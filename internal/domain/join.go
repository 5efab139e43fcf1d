package domain

import "fmt"

// JoinMode selects how output files are paired with table rows.
type JoinMode string

const (
	// JoinByIdentifier matches each row to the file named after its identifier.
	JoinByIdentifier JoinMode = "identifier"
	// JoinByPosition pairs the i-th table row, in file order, with the i-th
	// output file in lexicographic order.
	JoinByPosition JoinMode = "position"
	// JoinBySortedPosition sorts the table by identifier before pairing
	// positionally.
	JoinBySortedPosition JoinMode = "sorted-position"
)

// ParseJoinMode validates a join mode name.
func ParseJoinMode(s string) (JoinMode, error) {
	switch m := JoinMode(s); m {
	case JoinByIdentifier, JoinByPosition, JoinBySortedPosition:
		return m, nil
	default:
		return "", fmt.Errorf("unknown join mode %q (want %s, %s or %s)",
			s, JoinByIdentifier, JoinByPosition, JoinBySortedPosition)
	}
}

// Positional reports whether the mode pairs rows and files by order.
func (m JoinMode) Positional() bool {
	return m == JoinByPosition || m == JoinBySortedPosition
}
