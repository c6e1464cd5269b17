package grading

import (
	"image"

	"omr-grader/internal/fill"
	"omr-grader/internal/mark"
	"omr-grader/internal/orient"
	"omr-grader/internal/score"
	"omr-grader/pkg/colorutil"

	"gocv.io/x/gocv"
)

// Inspection is the detector's view of one sheet, for tuning thresholds.
type Inspection struct {
	Gray     gocv.Mat // normalized sheet, owned by the Inspection
	Decision orient.Decision
	Marks    []score.Mark // row-major
}

// Close releases the normalized image.
func (in *Inspection) Close() error {
	return in.Gray.Close()
}

// Inspect runs orientation, detection and fill classification without
// scoring. Zero detected marks is not an error here.
func (g *Grader) Inspect(data []byte) (*Inspection, error) {
	gray, dec, err := g.prepare(data)
	if err != nil {
		return nil, err
	}
	cands := mark.SortRowMajor(mark.Detect(gray, g.params), g.params.RowTolerance)
	states := fill.ClassifyAll(gray, cands, g.params)

	marks := make([]score.Mark, len(cands))
	for i, c := range cands {
		marks[i] = score.Mark{Center: c.Center, Radius: c.Radius, Filled: states[i] == fill.Filled}
	}
	return &Inspection{Gray: gray, Decision: dec, Marks: marks}, nil
}

// Annotate draws marks onto a BGR copy of gray: filled bubbles in green,
// empty ones in red, point-only marks as yellow crosses.
func Annotate(gray gocv.Mat, marks []score.Mark) gocv.Mat {
	out := gocv.NewMat()
	if gray.Channels() == 1 {
		gocv.CvtColor(gray, &out, gocv.ColorGrayToBGR)
	} else {
		gray.CopyTo(&out)
	}
	for _, m := range marks {
		center := image.Pt(m.Center.X, m.Center.Y)
		if m.Radius == 0 {
			gocv.Line(&out, center.Add(image.Pt(-6, 0)), center.Add(image.Pt(6, 0)), colorutil.Yellow, 2)
			gocv.Line(&out, center.Add(image.Pt(0, -6)), center.Add(image.Pt(0, 6)), colorutil.Yellow, 2)
			continue
		}
		c := colorutil.Red
		if m.Filled {
			c = colorutil.Green
		}
		gocv.Circle(&out, center, m.Radius, c, 2)
	}
	return out
}
