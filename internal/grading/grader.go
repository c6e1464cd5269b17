package grading

import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"omr-grader/internal/config"
	"omr-grader/internal/fill"
	"omr-grader/internal/mark"
	"omr-grader/internal/orient"
	"omr-grader/internal/score"
	"omr-grader/internal/sheet"
	"omr-grader/pkg/geometry"

	"gocv.io/x/gocv"
)

// DefaultQuestionLimit is the largest question count accepted at registration.
const DefaultQuestionLimit = config.MaxQuestions

// LabelReader reads free text (student name or ID) from a region of the
// normalized grayscale sheet.
type LabelReader interface {
	ReadRegion(gray gocv.Mat, region geometry.RectInt) (string, error)
}

// Grader runs the registration and scoring pipelines. It keeps no
// per-sheet state, so one Grader may serve concurrent requests.
type Grader struct {
	params        config.Params
	normalizer    orient.Normalizer
	labels        LabelReader
	questionLimit int
}

// NewGrader validates params and builds a Grader around the configured
// orientation strategy.
func NewGrader(params config.Params) (*Grader, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	n, err := orient.New(params)
	if err != nil {
		return nil, err
	}
	return &Grader{params: params, normalizer: n, questionLimit: DefaultQuestionLimit}, nil
}

// Params returns the thresholds in use.
func (g *Grader) Params() config.Params {
	return g.params
}

// SetQuestionLimit lowers the upper bound for question counts. Values
// outside 1..DefaultQuestionLimit restore the default.
func (g *Grader) SetQuestionLimit(n int) {
	if n < 1 || n > DefaultQuestionLimit {
		n = DefaultQuestionLimit
	}
	g.questionLimit = n
}

// SetLabelReader enables reading the sheet header into Result.SheetLabel.
// It has no effect unless Params.HeaderRegion is set.
func (g *Grader) SetLabelReader(r LabelReader) {
	g.labels = r
}

// prepare decodes an uploaded image to grayscale and brings it into the
// reference orientation. The caller owns the returned Mat.
func (g *Grader) prepare(data []byte) (gocv.Mat, orient.Decision, error) {
	gray, err := sheet.DecodeGray(data, g.params.ResizeWidth)
	if err != nil {
		gray.Close()
		return gocv.Mat{}, orient.Decision{}, err
	}
	defer gray.Close()

	normalized, dec := g.normalizer.Normalize(gray)
	if dec.Insufficient {
		log.Printf("orientation: %s", dec)
	}
	return normalized, dec, nil
}

// RegisterBase builds an answer key from a base sheet.
//
// When marks is non-empty, the first questionCount points become a
// proximity key in capture order; extra points are ignored. Otherwise
// bubbles are detected on the sheet, ordered row-major and grouped into
// questions of len(Alternatives) slots; the expected letter of each question
// comes from answers when given, else from the filled slot on the sheet.
func (g *Grader) RegisterBase(data []byte, questionCount int, marks []geometry.PointInt, answers []string) (*AnswerKey, error) {
	if questionCount < 1 || questionCount > g.questionLimit {
		return nil, fmt.Errorf("%w: %d (allowed 1..%d)", ErrInvalidQuestionCount, questionCount, g.questionLimit)
	}

	gray, dec, err := g.prepare(data)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	key := &AnswerKey{
		QuestionCount: questionCount,
		Width:         gray.Cols(),
		Height:        gray.Rows(),
		Rotation:      dec.Rotation,
		Orientation:   dec.String(),
		CreatedAt:     time.Now().UTC(),
	}

	if len(marks) > 0 {
		err = g.pointsKey(key, marks)
	} else {
		err = g.gridKey(key, gray, answers)
	}
	if err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	log.Printf("register: %d questions, %s key, %s", questionCount, key.Kind, dec)
	return key, nil
}

// pointsKey builds a proximity key from coordinates captured on the image
// as uploaded. They are turned with the sheet into the normalized frame.
func (g *Grader) pointsKey(key *AnswerKey, marks []geometry.PointInt) error {
	if len(marks) < key.QuestionCount {
		return fmt.Errorf("%w: %d marks for %d questions", ErrIncompleteKey, len(marks), key.QuestionCount)
	}
	if len(marks) > key.QuestionCount {
		log.Printf("register: ignoring %d marks beyond question %d", len(marks)-key.QuestionCount, key.QuestionCount)
	}

	srcW, srcH := key.SourceSize()
	key.Kind = KindPoints
	for i, c := range mark.FromPoints(marks, key.QuestionCount) {
		if !c.Center.In(srcW, srcH) {
			return fmt.Errorf("%w: mark %d at %s outside %dx%d image", ErrInvalidAnswer, i+1, c.Center, srcW, srcH)
		}
		c.Center = c.Center.Rotate(key.Rotation, srcW, srcH)
		key.Entries = append(key.Entries, Entry{Question: i + 1, Mark: &c})
	}
	return nil
}

func (g *Grader) gridKey(key *AnswerKey, gray gocv.Mat, answers []string) error {
	alts := g.params.Alternatives
	perQuestion := len(alts)

	cands := mark.Detect(gray, g.params)
	if len(cands) == 0 {
		return ErrNoMarksDetected
	}
	sorted := mark.SortRowMajor(cands, g.params.RowTolerance)

	want := key.QuestionCount * perQuestion
	if len(sorted) != want {
		log.Printf("register: detected %d bubbles, expected %d (%d questions x %d alternatives)",
			len(sorted), want, key.QuestionCount, perQuestion)
	}
	slots := sorted[:min(len(sorted), want)]

	var labels []string
	if len(answers) > 0 {
		var err error
		if labels, err = normalizeAnswers(answers, alts, key.QuestionCount); err != nil {
			return err
		}
	} else {
		labels = score.SelectGrid(filledMask(fill.ClassifyAll(gray, slots, g.params)), alts, key.QuestionCount)
		var missing []string
		for i, l := range labels {
			if l == score.UndeterminedLabel {
				missing = append(missing, fmt.Sprint(i+1))
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: no filled alternative for question(s) %s", ErrIncompleteKey, strings.Join(missing, ", "))
		}
	}

	key.Kind = KindGrid
	key.Alternatives = alts
	for q := 0; q < key.QuestionCount; q++ {
		e := Entry{Question: q + 1, Label: labels[q]}
		if lo := q * perQuestion; lo < len(slots) {
			e.Slots = append([]mark.Candidate(nil), slots[lo:min(lo+perQuestion, len(slots))]...)
		}
		key.Entries = append(key.Entries, e)
	}
	return nil
}

// normalizeAnswers upper-cases supplied letters and checks them against the
// alternative set. Letters beyond questionCount are ignored.
func normalizeAnswers(answers []string, alternatives string, questionCount int) ([]string, error) {
	if len(answers) < questionCount {
		return nil, fmt.Errorf("%w: %d answers for %d questions", ErrIncompleteKey, len(answers), questionCount)
	}
	labels := make([]string, questionCount)
	for i := range labels {
		l := strings.ToUpper(strings.TrimSpace(answers[i]))
		if len(l) != 1 || !containsLetter(alternatives, l) {
			return nil, fmt.Errorf("%w: question %d answer %q not in %q", ErrInvalidAnswer, i+1, answers[i], alternatives)
		}
		labels[i] = l
	}
	return labels, nil
}

// ScoreSubmission grades one submitted sheet against key.
func (g *Grader) ScoreSubmission(data []byte, key *AnswerKey) (*score.Result, error) {
	if key == nil {
		return nil, ErrNoAnswerKey
	}

	gray, dec, err := g.prepare(data)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	cands := mark.Detect(gray, g.params)
	if len(cands) == 0 {
		return nil, ErrNoMarksDetected
	}

	var res *score.Result
	var states []fill.State
	switch key.Kind {
	case KindPoints:
		states = fill.ClassifyAll(gray, cands, g.params)
		var filled []geometry.PointInt
		for i, c := range cands {
			if states[i] == fill.Filled {
				filled = append(filled, c.Center)
			}
		}
		res = score.MatchProximity(key.Points(), filled, g.params.MatchTolerance, g.params.MatchMetric)

	case KindGrid:
		if key.HasSlots() {
			detected := len(cands)
			var labels []string
			labels, cands, states = g.readSlots(gray, key)
			res = score.MatchGrid(key.Labels(), labels)
			if detected != len(cands) {
				log.Printf("score: detected %d bubbles, key registers %d slots", detected, len(cands))
			}
			break
		}

		// Keys without a slot layout fall back to the submission's own
		// row-major order.
		alts := key.Alternatives
		if alts == "" {
			alts = g.params.Alternatives
		}
		cands = mark.SortRowMajor(cands, g.params.RowTolerance)
		states = fill.ClassifyAll(gray, cands, g.params)
		detectedQuestions := len(cands) / len(alts)
		detected := score.SelectGrid(filledMask(states), alts, detectedQuestions)
		res = score.MatchGrid(key.Labels(), detected)
		if res.SizeMismatch {
			log.Printf("score: sheet yields %d questions, key has %d", detectedQuestions, key.QuestionCount)
		}

	default:
		return nil, fmt.Errorf("unknown key kind %q", key.Kind)
	}

	undetermined := 0
	res.Marks = make([]score.Mark, len(cands))
	for i, c := range cands {
		res.Marks[i] = score.Mark{Center: c.Center, Radius: c.Radius, Filled: states[i] == fill.Filled}
		if states[i] == fill.Undetermined {
			undetermined++
		}
	}
	if undetermined > 0 {
		log.Printf("score: %d bubbles could not be sampled", undetermined)
	}
	res.Orientation = dec.String()
	res.SheetLabel = g.readLabel(gray)
	return res, nil
}

// readSlots samples the registered slots of a grid key on a normalized
// submission, scaled when the submission size differs from the reference.
// The first filled slot of a question gives its letter.
func (g *Grader) readSlots(gray gocv.Mat, key *AnswerKey) (labels []string, slots []mark.Candidate, states []fill.State) {
	sx, sy := 1.0, 1.0
	if key.Width > 0 && key.Height > 0 {
		sx = float64(gray.Cols()) / float64(key.Width)
		sy = float64(gray.Rows()) / float64(key.Height)
	}
	alts := []rune(key.Alternatives)

	labels = make([]string, len(key.Entries))
	for q, e := range key.Entries {
		labels[q] = score.UndeterminedLabel
		for j, s := range e.Slots {
			c := scaleCandidate(s, sx, sy)
			st := fill.Classify(gray, c, g.params)
			slots = append(slots, c)
			states = append(states, st)
			if st == fill.Filled && labels[q] == score.UndeterminedLabel && j < len(alts) {
				labels[q] = string(alts[j])
			}
		}
	}
	return labels, slots, states
}

func scaleCandidate(c mark.Candidate, sx, sy float64) mark.Candidate {
	if sx == 1 && sy == 1 {
		return c
	}
	c.Center = geometry.Point2D{X: float64(c.Center.X) * sx, Y: float64(c.Center.Y) * sy}.Round()
	if c.Radius > 0 {
		c.Radius = max(1, int(math.Round(float64(c.Radius)*(sx+sy)/2)))
	}
	return c
}

// readLabel runs the optional header OCR. Failures are logged and yield "".
func (g *Grader) readLabel(gray gocv.Mat) string {
	if g.labels == nil || g.params.HeaderRegion.Empty() {
		return ""
	}
	text, err := g.labels.ReadRegion(gray, g.params.HeaderRegion)
	if err != nil {
		log.Printf("header OCR: %v", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// Register runs RegisterBase and installs the key into s on success. A
// failed registration leaves the previous key in place.
func (g *Grader) Register(s *Session, data []byte, questionCount int, marks []geometry.PointInt, answers []string) (*AnswerKey, error) {
	key, err := g.RegisterBase(data, questionCount, marks, answers)
	if err != nil {
		return nil, err
	}
	s.Replace(key)
	return key, nil
}

// Score grades data against the key currently held by s.
func (g *Grader) Score(s *Session, data []byte) (*score.Result, error) {
	return g.ScoreSubmission(data, s.Key())
}

func filledMask(states []fill.State) []bool {
	mask := make([]bool, len(states))
	for i, s := range states {
		mask[i] = s == fill.Filled
	}
	return mask
}
