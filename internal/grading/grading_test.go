package grading

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"omr-grader/internal/config"
	"omr-grader/internal/score"
	"omr-grader/pkg/geometry"

	"gocv.io/x/gocv"
)

const (
	sheetW = 400
	sheetH = 300
)

// Bubble layout: 3 questions (rows) x 3 alternatives (columns).
var (
	bubbleX = []int{100, 160, 220}
	bubbleY = []int{60, 120, 180}
)

type sheetSpec struct {
	filled   map[int]int // question index -> alternative index
	header   bool        // dark title bar along the top edge
	flipped  bool        // captured upside down
	blank    bool        // no bubbles at all
	missing  map[int]int // question index -> alternative left unprinted
	portrait bool        // captured turned 90° counter-clockwise
}

func drawSheet(t *testing.T, s sheetSpec) []byte {
	t.Helper()
	bounds := image.Rect(0, 0, sheetW, sheetH)
	if s.portrait {
		bounds = image.Rect(0, 0, sheetH, sheetW)
	}
	img := image.NewGray(bounds)
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	set := func(x, y int, v uint8) {
		if s.flipped {
			x, y = sheetW-1-x, sheetH-1-y
		}
		if s.portrait {
			x, y = y, sheetW-1-x
		}
		img.SetGray(x, y, color.Gray{Y: v})
	}
	if s.header {
		for y := 5; y < 30; y++ {
			for x := 0; x < sheetW; x++ {
				set(x, y, 20)
			}
		}
	}
	if !s.blank {
		for q, y := range bubbleY {
			for a, x := range bubbleX {
				if alt, ok := s.missing[q]; ok && alt == a {
					continue
				}
				if alt, ok := s.filled[q]; ok && alt == a {
					drawDisc(set, x, y, 0, 14, 30)
				} else {
					drawDisc(set, x, y, 12, 15, 0)
				}
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

// drawDisc paints the annulus rIn..rOut (a solid disc when rIn is 0).
func drawDisc(set func(x, y int, v uint8), cx, cy, rIn, rOut int, v uint8) {
	for dy := -rOut; dy <= rOut; dy++ {
		for dx := -rOut; dx <= rOut; dx++ {
			d := dx*dx + dy*dy
			if d <= rOut*rOut && d >= rIn*rIn {
				set(cx+dx, cy+dy, v)
			}
		}
	}
}

func testGrader(t *testing.T, orientation string) *Grader {
	t.Helper()
	g, err := NewGrader(config.DefaultParams().WithOrientation(orientation).WithAlternatives("ABC"))
	if err != nil {
		t.Fatalf("NewGrader: %v", err)
	}
	return g
}

func TestRegisterGridFromFilledBase(t *testing.T) {
	g := testGrader(t, config.OrientNone)
	base := drawSheet(t, sheetSpec{filled: map[int]int{0: 0, 1: 1, 2: 2}})

	key, err := g.RegisterBase(base, 3, nil, nil)
	if err != nil {
		t.Fatalf("RegisterBase: %v", err)
	}
	if key.Kind != KindGrid {
		t.Fatalf("kind = %s, want grid", key.Kind)
	}
	got := key.Labels()
	want := []string{"A", "B", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("labels = %v, want %v", got, want)
		}
	}
	for _, e := range key.Entries {
		if len(e.Slots) != 3 {
			t.Fatalf("question %d has %d slots, want 3", e.Question, len(e.Slots))
		}
	}
}

func TestScoreGrid(t *testing.T) {
	g := testGrader(t, config.OrientNone)
	key, err := g.RegisterBase(drawSheet(t, sheetSpec{}), 3, nil, []string{"a", "B", "C"})
	if err != nil {
		t.Fatalf("RegisterBase: %v", err)
	}

	sub := drawSheet(t, sheetSpec{filled: map[int]int{0: 0, 1: 2, 2: 2}})
	res, err := g.ScoreSubmission(sub, key)
	if err != nil {
		t.Fatalf("ScoreSubmission: %v", err)
	}
	if res.Total != 3 || res.Correct != 2 || res.Incorrect != 1 {
		t.Fatalf("got %d/%d correct (%d incorrect), want 2/3", res.Correct, res.Total, res.Incorrect)
	}
	if len(res.IncorrectQuestions) != 1 || res.IncorrectQuestions[0] != 2 {
		t.Fatalf("incorrect questions = %v, want [2]", res.IncorrectQuestions)
	}
	if res.SizeMismatch {
		t.Fatalf("unexpected size mismatch")
	}
	if len(res.Marks) != 9 {
		t.Fatalf("got %d marks, want 9", len(res.Marks))
	}
}

func TestScoreGridBlankQuestionIsUndetermined(t *testing.T) {
	g := testGrader(t, config.OrientNone)
	key, err := g.RegisterBase(drawSheet(t, sheetSpec{}), 3, nil, []string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("RegisterBase: %v", err)
	}
	res, err := g.ScoreSubmission(drawSheet(t, sheetSpec{filled: map[int]int{0: 0, 2: 2}}), key)
	if err != nil {
		t.Fatalf("ScoreSubmission: %v", err)
	}
	q2 := res.Questions[1]
	if !q2.Detected.Undetermined || q2.Verdict != score.Incorrect {
		t.Fatalf("question 2 = %+v, want undetermined and incorrect", q2)
	}
	if res.Correct != 2 {
		t.Fatalf("correct = %d, want 2", res.Correct)
	}
}

func TestScoreGridUsesRegisteredSlots(t *testing.T) {
	g := testGrader(t, config.OrientNone)
	key, err := g.RegisterBase(drawSheet(t, sheetSpec{filled: map[int]int{0: 0, 1: 1, 2: 2}}), 3, nil, nil)
	if err != nil {
		t.Fatalf("RegisterBase: %v", err)
	}

	// Question 1 lost its B bubble, so the submission has 8 bubbles and a
	// row-major regrouping would shift every later question.
	sub := drawSheet(t, sheetSpec{missing: map[int]int{0: 1}, filled: map[int]int{1: 1}})
	res, err := g.ScoreSubmission(sub, key)
	if err != nil {
		t.Fatalf("ScoreSubmission: %v", err)
	}
	if res.Total != 3 || res.Correct != 1 {
		t.Fatalf("got %d/%d correct, want 1/3", res.Correct, res.Total)
	}
	q2 := res.Questions[1]
	if q2.Detected.Label != "B" || q2.Verdict != score.Correct {
		t.Fatalf("question 2 = %+v, want B and correct", q2)
	}
	for _, i := range []int{0, 2} {
		if !res.Questions[i].Detected.Undetermined {
			t.Fatalf("question %d = %+v, want undetermined", i+1, res.Questions[i])
		}
	}
	if len(res.Marks) != 9 {
		t.Fatalf("got %d marks, want one per registered slot", len(res.Marks))
	}
}

func TestScoreGridWithoutSlotsUsesRowOrder(t *testing.T) {
	g := testGrader(t, config.OrientNone)
	key := &AnswerKey{Kind: KindGrid, QuestionCount: 3, Alternatives: "ABC",
		Entries: []Entry{{Question: 1, Label: "A"}, {Question: 2, Label: "B"}, {Question: 3, Label: "A"}}}
	if key.HasSlots() {
		t.Fatalf("key without slots reports slots")
	}
	res, err := g.ScoreSubmission(drawSheet(t, sheetSpec{filled: map[int]int{0: 0, 1: 1, 2: 2}}), key)
	if err != nil {
		t.Fatalf("ScoreSubmission: %v", err)
	}
	if res.Correct != 2 || len(res.IncorrectQuestions) != 1 || res.IncorrectQuestions[0] != 3 {
		t.Fatalf("got %d correct, incorrect %v; want 2 and [3]", res.Correct, res.IncorrectQuestions)
	}
}

func TestScoreGridUpsideDown(t *testing.T) {
	g := testGrader(t, config.OrientDarkness)
	key, err := g.RegisterBase(drawSheet(t, sheetSpec{header: true}), 3, nil, []string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("RegisterBase: %v", err)
	}
	sub := drawSheet(t, sheetSpec{header: true, flipped: true, filled: map[int]int{0: 0, 1: 1, 2: 2}})
	res, err := g.ScoreSubmission(sub, key)
	if err != nil {
		t.Fatalf("ScoreSubmission: %v", err)
	}
	if res.Correct != 3 {
		t.Fatalf("correct = %d, want 3 (orientation %q)", res.Correct, res.Orientation)
	}
}

func TestRegisterPointsAndScore(t *testing.T) {
	g := testGrader(t, config.OrientNone)
	marks := []geometry.PointInt{{X: 100, Y: 60}, {X: 160, Y: 120}, {X: 220, Y: 180}, {X: 5, Y: 5}}

	key, err := g.RegisterBase(drawSheet(t, sheetSpec{}), 3, marks, nil)
	if err != nil {
		t.Fatalf("RegisterBase: %v", err)
	}
	if key.Kind != KindPoints || len(key.Points()) != 3 {
		t.Fatalf("key = %s with %d points, want points with 3", key.Kind, len(key.Points()))
	}

	sub := drawSheet(t, sheetSpec{filled: map[int]int{0: 0, 1: 1, 2: 0}})
	res, err := g.ScoreSubmission(sub, key)
	if err != nil {
		t.Fatalf("ScoreSubmission: %v", err)
	}
	if res.Correct != 2 || res.Incorrect != 1 {
		t.Fatalf("got %d correct, %d incorrect; want 2 and 1", res.Correct, res.Incorrect)
	}
	if res.IncorrectQuestions[0] != 3 {
		t.Fatalf("incorrect = %v, want [3]", res.IncorrectQuestions)
	}
}

func TestRegisterPointsPortraitBase(t *testing.T) {
	g := testGrader(t, config.OrientDarkness)
	base := drawSheet(t, sheetSpec{header: true, portrait: true})
	// Coordinates as clicked on the portrait upload of bubbles 1A, 2B, 3C.
	marks := []geometry.PointInt{{X: 60, Y: 299}, {X: 120, Y: 239}, {X: 180, Y: 179}}

	key, err := g.RegisterBase(base, 3, marks, nil)
	if err != nil {
		t.Fatalf("RegisterBase: %v", err)
	}
	if key.Rotation != 90 || key.Width != sheetW || key.Height != sheetH {
		t.Fatalf("key rotation %d size %dx%d, want 90 and %dx%d", key.Rotation, key.Width, key.Height, sheetW, sheetH)
	}
	want := []geometry.PointInt{{X: 100, Y: 60}, {X: 160, Y: 120}, {X: 220, Y: 180}}
	for i, p := range key.Points() {
		if p != want[i] {
			t.Fatalf("point %d = %s, want %s", i+1, p, want[i])
		}
	}

	sub := drawSheet(t, sheetSpec{header: true, filled: map[int]int{0: 0, 1: 1, 2: 2}})
	res, err := g.ScoreSubmission(sub, key)
	if err != nil {
		t.Fatalf("ScoreSubmission: %v", err)
	}
	if res.Correct != 3 {
		t.Fatalf("correct = %d, want 3", res.Correct)
	}

	// Landscape coordinates do not fit the portrait upload.
	if _, err := g.RegisterBase(base, 1, []geometry.PointInt{{X: 350, Y: 60}}, nil); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("off-image mark: err = %v", err)
	}
}

func TestQuestionLimitNeverExceedsMaximum(t *testing.T) {
	g := testGrader(t, config.OrientNone)
	g.SetQuestionLimit(500)
	if _, err := g.RegisterBase(drawSheet(t, sheetSpec{}), DefaultQuestionLimit+1, nil, nil); !errors.Is(err, ErrInvalidQuestionCount) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidQuestionCount)
	}
}

func TestRegisterErrors(t *testing.T) {
	g := testGrader(t, config.OrientNone)
	base := drawSheet(t, sheetSpec{})

	tests := []struct {
		name    string
		count   int
		marks   []geometry.PointInt
		answers []string
		data    []byte
		want    error
	}{
		{"zero questions", 0, nil, nil, base, ErrInvalidQuestionCount},
		{"over limit", DefaultQuestionLimit + 1, nil, nil, base, ErrInvalidQuestionCount},
		{"too few marks", 3, []geometry.PointInt{{X: 100, Y: 60}}, nil, base, ErrIncompleteKey},
		{"mark off image", 1, []geometry.PointInt{{X: 900, Y: 60}}, nil, base, ErrInvalidAnswer},
		{"letter outside set", 3, nil, []string{"A", "Z", "B"}, base, ErrInvalidAnswer},
		{"too few answers", 3, nil, []string{"A"}, base, ErrIncompleteKey},
		{"unfilled base", 3, nil, nil, base, ErrIncompleteKey},
		{"blank sheet", 3, nil, nil, drawSheet(t, sheetSpec{blank: true}), ErrNoMarksDetected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.RegisterBase(tt.data, tt.count, tt.marks, tt.answers)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestScoreErrors(t *testing.T) {
	g := testGrader(t, config.OrientNone)
	if _, err := g.ScoreSubmission(drawSheet(t, sheetSpec{}), nil); !errors.Is(err, ErrNoAnswerKey) {
		t.Fatalf("nil key: err = %v", err)
	}
	key := &AnswerKey{Kind: KindGrid, QuestionCount: 1, Alternatives: "ABC", Entries: []Entry{{Question: 1, Label: "A"}}}
	if _, err := g.ScoreSubmission(drawSheet(t, sheetSpec{blank: true}), key); !errors.Is(err, ErrNoMarksDetected) {
		t.Fatalf("blank sheet: err = %v", err)
	}
	if _, err := g.ScoreSubmission([]byte("not an image"), key); err == nil {
		t.Fatalf("expected decode error")
	}
}

type fakeLabels struct{ text string }

func (f fakeLabels) ReadRegion(gocv.Mat, geometry.RectInt) (string, error) { return f.text, nil }

func TestSheetLabel(t *testing.T) {
	params := config.DefaultParams().WithOrientation(config.OrientNone).WithAlternatives("ABC")
	params.HeaderRegion = geometry.RectInt{X: 0, Y: 0, Width: 400, Height: 30}
	g, err := NewGrader(params)
	if err != nil {
		t.Fatalf("NewGrader: %v", err)
	}
	g.SetLabelReader(fakeLabels{text: " STUDENT 7\n"})

	key, err := g.RegisterBase(drawSheet(t, sheetSpec{}), 3, nil, []string{"A", "A", "A"})
	if err != nil {
		t.Fatalf("RegisterBase: %v", err)
	}
	res, err := g.ScoreSubmission(drawSheet(t, sheetSpec{filled: map[int]int{0: 0}}), key)
	if err != nil {
		t.Fatalf("ScoreSubmission: %v", err)
	}
	if res.SheetLabel != "STUDENT 7" {
		t.Fatalf("label = %q", res.SheetLabel)
	}
}

func TestKeyValidate(t *testing.T) {
	good := &AnswerKey{Kind: KindGrid, QuestionCount: 2, Alternatives: "AB",
		Entries: []Entry{{Question: 1, Label: "A"}, {Question: 2, Label: "B"}}}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
	gap := &AnswerKey{Kind: KindGrid, QuestionCount: 2, Alternatives: "AB",
		Entries: []Entry{{Question: 1, Label: "A"}, {Question: 3, Label: "B"}}}
	if err := gap.Validate(); !errors.Is(err, ErrIncompleteKey) {
		t.Fatalf("gap: err = %v", err)
	}
	noMark := &AnswerKey{Kind: KindPoints, QuestionCount: 1, Entries: []Entry{{Question: 1}}}
	if err := noMark.Validate(); !errors.Is(err, ErrIncompleteKey) {
		t.Fatalf("missing mark: err = %v", err)
	}
}

func TestSessionReplaceAndReset(t *testing.T) {
	s := NewSession()
	if s.Key() != nil {
		t.Fatalf("new session has a key")
	}
	k1 := &AnswerKey{QuestionCount: 1}
	k2 := &AnswerKey{QuestionCount: 2}
	s.Replace(k1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if k := s.Key(); k != k1 && k != k2 {
					t.Errorf("observed foreign key %p", k)
					return
				}
			}
		}()
	}
	s.Replace(k2)
	wg.Wait()

	if s.Key() != k2 {
		t.Fatalf("key not replaced")
	}
	s.Reset()
	if s.Key() != nil {
		t.Fatalf("key not reset")
	}
}

func TestFailedRegisterKeepsPreviousKey(t *testing.T) {
	g := testGrader(t, config.OrientNone)
	s := NewSession()
	prev := &AnswerKey{Kind: KindGrid, QuestionCount: 1}
	s.Replace(prev)
	if _, err := g.Register(s, drawSheet(t, sheetSpec{}), 0, nil, nil); err == nil {
		t.Fatalf("expected error")
	}
	if s.Key() != prev {
		t.Fatalf("failed registration replaced the key")
	}
}

func TestInspectAndAnnotate(t *testing.T) {
	g := testGrader(t, config.OrientNone)
	in, err := g.Inspect(drawSheet(t, sheetSpec{filled: map[int]int{1: 1}}))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	defer in.Close()

	if len(in.Marks) != 9 {
		t.Fatalf("got %d marks, want 9", len(in.Marks))
	}
	filled := 0
	for i, m := range in.Marks {
		if m.Filled {
			filled++
			if i != 4 {
				t.Fatalf("filled mark at row-major index %d, want 4", i)
			}
		}
	}
	if filled != 1 {
		t.Fatalf("filled = %d, want 1", filled)
	}

	out := Annotate(in.Gray, append(in.Marks, score.Mark{Center: geometry.PointInt{X: 20, Y: 20}}))
	defer out.Close()
	if out.Channels() != 3 || out.Cols() != sheetW || out.Rows() != sheetH {
		t.Fatalf("annotated %dx%d with %d channels", out.Cols(), out.Rows(), out.Channels())
	}
}

func TestCurrentReload(t *testing.T) {
	g := testGrader(t, config.OrientNone)
	g.SetQuestionLimit(5)
	cur := NewCurrent(g)

	if err := cur.Reload(config.DefaultParams().WithTolerance(3, "chebyshev")); err == nil {
		t.Fatalf("invalid params accepted")
	}
	if cur.Get() != g {
		t.Fatalf("grader swapped on failed reload")
	}

	if err := cur.Reload(config.DefaultParams().WithOrientation(config.OrientNone).WithTolerance(3, "")); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if cur.Get() == g || cur.Get().Params().MatchTolerance != 3 {
		t.Fatalf("grader not swapped")
	}
	if _, err := cur.RegisterBase(drawSheet(t, sheetSpec{}), 6, nil, nil); !errors.Is(err, ErrInvalidQuestionCount) {
		t.Fatalf("question limit not carried over: %v", err)
	}
}
