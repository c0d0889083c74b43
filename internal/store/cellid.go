package store

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/mattjoyce/gridlink/internal/orderkey"
)

const cellIDSep = "#"

// CellID builds the id of the cell in column col of the row keyed rowKey.
// The embedded key and column are advisory; links are authoritative.
func CellID(rowKey orderkey.Key, col int) string {
	return rowKey.String() + cellIDSep + strconv.Itoa(col)
}

// ParseCellID recovers the row key and column embedded in a cell id.
func ParseCellID(id string) (orderkey.Key, int, error) {
	keyPart, colPart, ok := strings.Cut(id, cellIDSep)
	if !ok {
		return nil, 0, fmt.Errorf("cell id %q has no column", id)
	}
	key, err := orderkey.Parse(keyPart)
	if err != nil {
		return nil, 0, fmt.Errorf("cell id %q: %w", id, err)
	}
	col, err := strconv.Atoi(colPart)
	if err != nil || col < 0 {
		return nil, 0, fmt.Errorf("cell id %q has invalid column %q", id, colPart)
	}
	return key, col, nil
}

// CompareVertical returns -1 if cell a sits above cell b, +1 if below, 0 if
// they share a row key.
func CompareVertical(a, b string) (int, error) {
	ka, _, err := ParseCellID(a)
	if err != nil {
		return 0, err
	}
	kb, _, err := ParseCellID(b)
	if err != nil {
		return 0, err
	}
	return orderkey.Compare(kb, ka), nil
}

// CompareHorizontal returns -1 if cell a sits left of cell b, +1 if right,
// 0 if they share a column.
func CompareHorizontal(a, b string) (int, error) {
	_, ca, err := ParseCellID(a)
	if err != nil {
		return 0, err
	}
	_, cb, err := ParseCellID(b)
	if err != nil {
		return 0, err
	}
	return cmp.Compare(ca, cb), nil
}
