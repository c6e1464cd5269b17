package mark

import "sort"

// Rows groups candidates into bubble rows. Candidates are taken in y order
// and a new row starts when a candidate sits more than rowTol pixels below
// the first candidate of the current row. Within a row, candidates are
// ordered by x.
func Rows(cands []Candidate, rowTol int) [][]Candidate {
	if len(cands) == 0 {
		return nil
	}
	byY := make([]Candidate, len(cands))
	copy(byY, cands)
	sort.SliceStable(byY, func(i, j int) bool {
		if byY[i].Center.Y != byY[j].Center.Y {
			return byY[i].Center.Y < byY[j].Center.Y
		}
		return byY[i].Center.X < byY[j].Center.X
	})

	var rows [][]Candidate
	var cur []Candidate
	rowStart := 0
	for _, c := range byY {
		if len(cur) > 0 && c.Center.Y-rowStart > rowTol {
			rows = append(rows, cur)
			cur = nil
		}
		if len(cur) == 0 {
			rowStart = c.Center.Y
		}
		cur = append(cur, c)
	}
	rows = append(rows, cur)

	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool {
			return row[i].Center.X < row[j].Center.X
		})
	}
	return rows
}

// SortRowMajor returns cands in question-major, alternative-minor order:
// rows top to bottom, left to right within a row.
func SortRowMajor(cands []Candidate, rowTol int) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, row := range Rows(cands, rowTol) {
		out = append(out, row...)
	}
	return out
}
