package monitor

// DiffLines compares two normalized texts line by line and returns the lines
// only present in the new text (added) and only in the old (removed), based
// on a longest-common-subsequence walk over the line sequences.
func DiffLines(previous, current string) (added, removed []string) {
	oldLines := splitLines(previous)
	newLines := splitLines(current)

	// LCS table over line sequences. Monitor snapshots are normalized and
	// capped upstream, so the quadratic table stays small.
	rows := len(oldLines) + 1
	cols := len(newLines) + 1
	table := make([]int, rows*cols)
	for i := len(oldLines) - 1; i >= 0; i-- {
		for j := len(newLines) - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				table[i*cols+j] = table[(i+1)*cols+j+1] + 1
			} else {
				table[i*cols+j] = maxInt(table[(i+1)*cols+j], table[i*cols+j+1])
			}
		}
	}

	i, j := 0, 0
	for i < len(oldLines) && j < len(newLines) {
		switch {
		case oldLines[i] == newLines[j]:
			i++
			j++
		case table[(i+1)*cols+j] >= table[i*cols+j+1]:
			removed = append(removed, oldLines[i])
			i++
		default:
			added = append(added, newLines[j])
			j++
		}
	}
	removed = append(removed, oldLines[i:]...)
	added = append(added, newLines[j:]...)
	return added, removed
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	start := 0
	for idx := 0; idx < len(text); idx++ {
		if text[idx] == '\n' {
			lines = append(lines, text[start:idx])
			start = idx + 1
		}
	}
	lines = append(lines, text[start:])
	return lines
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
