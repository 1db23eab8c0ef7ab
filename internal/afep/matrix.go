package afep

import (
	"fmt"
	"sort"

	"github.com/ppiankov/afep/internal/model"
)

// cell is one non-zero entry of a concept column
type cell struct {
	row   int
	count int
}

// Matrix is a sparse location x concept occurrence matrix. Rows are sorted
// locations, columns are concept ids in lexicographic order, and each column
// lists its non-zero cells in row order.
type Matrix struct {
	rows     []model.Location
	concepts []string
	columns  map[string][]cell
	rowTotal []int
}

// BuildMatrix groups records by location and concept and counts them
func BuildMatrix(records []model.MentionRecord) *Matrix {
	counts := make(map[model.Location]map[string]int)
	for _, r := range records {
		loc := r.Location()
		if counts[loc] == nil {
			counts[loc] = make(map[string]int)
		}
		counts[loc][r.ConceptID]++
	}

	rows := make([]model.Location, 0, len(counts))
	for loc := range counts {
		rows = append(rows, loc)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Less(rows[j]) })

	m := &Matrix{
		rows:     rows,
		columns:  make(map[string][]cell),
		rowTotal: make([]int, len(rows)),
	}
	for i, loc := range rows {
		for cui, n := range counts[loc] {
			m.columns[cui] = append(m.columns[cui], cell{row: i, count: n})
			m.rowTotal[i] += n
		}
	}

	m.concepts = make([]string, 0, len(m.columns))
	for cui := range m.columns {
		m.concepts = append(m.concepts, cui)
	}
	sort.Strings(m.concepts)

	return m
}

// NumRows returns the number of locations
func (m *Matrix) NumRows() int {
	return len(m.rows)
}

// Rows returns the locations in row order
func (m *Matrix) Rows() []model.Location {
	out := make([]model.Location, len(m.rows))
	copy(out, m.rows)
	return out
}

// Concepts returns the concept columns in lexicographic order
func (m *Matrix) Concepts() []string {
	out := make([]string, len(m.concepts))
	copy(out, m.concepts)
	return out
}

// Cell returns the occurrence count of concept at loc (0 when absent)
func (m *Matrix) Cell(loc model.Location, concept string) int {
	i := sort.Search(len(m.rows), func(i int) bool { return !m.rows[i].Less(loc) })
	if i == len(m.rows) || m.rows[i] != loc {
		return 0
	}
	for _, c := range m.columns[concept] {
		if c.row == i {
			return c.count
		}
	}
	return 0
}

// Validate checks that every row has a strictly positive cell
func (m *Matrix) Validate() error {
	for i, total := range m.rowTotal {
		if total <= 0 {
			return fmt.Errorf("%w: location %s has no positive concept", ErrInconsistentMatrix, m.rows[i])
		}
	}
	return nil
}
