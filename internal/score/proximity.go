package score

import (
	"omr-grader/pkg/geometry"
)

// Within reports whether a detected point lies inside the tolerance of a
// key point. The "box" metric compares each axis independently (Chebyshev
// distance); "euclidean" uses the straight-line distance.
func Within(key, detected geometry.PointInt, tol int, metric string) bool {
	if metric == "euclidean" {
		return key.Euclidean(detected) <= float64(tol)
	}
	return key.Chebyshev(detected) <= tol
}

// MatchProximity scores a coordinate key against the filled marks of a
// sheet. Question i+1 is correct when any filled mark lies within tolerance
// of key[i]; the first such mark is reported as detected. Marks matching no
// key point are ignored.
func MatchProximity(key []geometry.PointInt, filled []geometry.PointInt, tol int, metric string) *Result {
	questions := make([]QuestionResult, len(key))
	for i, kp := range key {
		q := QuestionResult{
			Question: i + 1,
			Expected: PointAnswer(kp),
			Detected: UndeterminedAnswer(),
			Verdict:  Incorrect,
		}
		for _, f := range filled {
			if Within(kp, f, tol, metric) {
				q.Detected = PointAnswer(f)
				q.Verdict = Correct
				break
			}
		}
		questions[i] = q
	}
	return tally(questions)
}
