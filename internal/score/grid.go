package score

// SelectGrid reads one letter per question from slot fill flags laid out
// row-major (question-major, alternative-minor). The first filled slot of a
// question wins. Questions with no filled slot, or whose slot row is not
// complete, read as UndeterminedLabel. Slots beyond questionCount rows are
// ignored.
func SelectGrid(filled []bool, alternatives string, questionCount int) []string {
	alts := []rune(alternatives)
	n := len(alts)
	labels := make([]string, questionCount)
	for q := 0; q < questionCount; q++ {
		labels[q] = UndeterminedLabel
		start := q * n
		if n == 0 || start+n > len(filled) {
			continue
		}
		for j := 0; j < n; j++ {
			if filled[start+j] {
				labels[q] = string(alts[j])
				break
			}
		}
	}
	return labels
}

// MatchGrid scores letter answers against a letter key. Only the key's
// range 1..len(expected) is scored; missing detections are undetermined,
// extra detections are ignored. An undetermined answer is always incorrect.
func MatchGrid(expected, detected []string) *Result {
	questions := make([]QuestionResult, len(expected))
	for i, exp := range expected {
		det := UndeterminedLabel
		if i < len(detected) && detected[i] != "" {
			det = detected[i]
		}
		q := QuestionResult{
			Question: i + 1,
			Expected: LabelAnswer(exp),
			Detected: LabelAnswer(det),
			Verdict:  Incorrect,
		}
		if det != UndeterminedLabel && det == exp {
			q.Verdict = Correct
		}
		questions[i] = q
	}
	r := tally(questions)
	r.SizeMismatch = len(detected) != len(expected)
	return r
}
