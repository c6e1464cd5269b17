// Command omrgrade registers answer keys and scores answer sheets from the
// command line.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"omr-grader/internal/config"
	"omr-grader/internal/grading"
	"omr-grader/internal/keyfile"
	"omr-grader/internal/ocr"
	"omr-grader/internal/score"
	"omr-grader/internal/sheet"
	"omr-grader/internal/version"
	"omr-grader/pkg/geometry"

	"github.com/disintegration/imaging"
)

const usage = `Usage:
  omrgrade register -image base.jpg -questions 20 [-answers ABCD...] [-marks marks.json] -out key.json
  omrgrade score    -image sheet.jpg -key key.json [-json]
  omrgrade detect   -image sheet.jpg [-annotate out.png]
  omrgrade version

Common flags: -params thresholds.json -orientation darkness|markers|none -ocr [-ids]`

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "register":
		err = runRegister(os.Args[2:])
	case "score":
		err = runScore(os.Args[2:])
	case "detect":
		err = runDetect(os.Args[2:])
	case "version":
		fmt.Println(version.String())
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

type commonFlags struct {
	image       *string
	params      *string
	orientation *string
	headerOCR   *bool
	idMode      *bool
}

func addCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		image:       fs.String("image", "", "Path to sheet image (JPEG, PNG or TIFF)"),
		params:      fs.String("params", "", "JSON file overriding default thresholds"),
		orientation: fs.String("orientation", "", "Orientation strategy: darkness, markers or none"),
		headerOCR:   fs.Bool("ocr", false, "Read the header region with Tesseract"),
		idMode:      fs.Bool("ids", false, "Restrict header OCR to student-ID characters"),
	}
}

func (cf commonFlags) grader(override func(config.Params) config.Params) (*grading.Grader, []byte, error) {
	if *cf.image == "" {
		return nil, nil, fmt.Errorf("-image is required")
	}
	params, err := config.LoadParams(*cf.params)
	if err != nil {
		return nil, nil, err
	}
	if override != nil {
		params = override(params)
	}
	if *cf.orientation != "" {
		params = params.WithOrientation(*cf.orientation)
	}
	g, err := grading.NewGrader(params)
	if err != nil {
		return nil, nil, err
	}
	if *cf.headerOCR {
		engine, err := ocr.NewEngine("eng")
		if err != nil {
			log.Printf("header OCR disabled: %v", err)
		} else {
			engine.SetIDMode(*cf.idMode)
			g.SetLabelReader(engine)
		}
	}
	data, err := sheet.ReadFile(*cf.image)
	if err != nil {
		return nil, nil, err
	}
	return g, data, nil
}

func runRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	cf := addCommon(fs)
	questions := fs.Int("questions", 0, "Number of questions (1-200)")
	answers := fs.String("answers", "", "Expected letters, e.g. ABDCE or A,B,D,C,E")
	marksPath := fs.String("marks", "", "JSON file with captured answer coordinates [[x,y],...]")
	out := fs.String("out", "", "Key file to write")
	name := fs.String("name", "", "Exam name stored in the key file")
	fs.Parse(args)

	if *out == "" {
		return fmt.Errorf("-out is required")
	}
	g, data, err := cf.grader(nil)
	if err != nil {
		return err
	}

	var marks []geometry.PointInt
	if *marksPath != "" {
		if marks, err = readMarks(*marksPath); err != nil {
			return err
		}
	}
	var letters []string
	for _, r := range strings.ToUpper(strings.NewReplacer(",", "", " ", "").Replace(*answers)) {
		letters = append(letters, string(r))
	}

	key, err := g.RegisterBase(data, *questions, marks, letters)
	if err != nil {
		return err
	}
	if *name == "" {
		*name = strings.TrimSuffix(filepath.Base(*cf.image), filepath.Ext(*cf.image))
	}
	if err := keyfile.New(*name, key, g.Params()).Save(*out); err != nil {
		return err
	}

	fmt.Printf("Registered %d questions (%s key) -> %s\n", key.QuestionCount, key.Kind, *out)
	if key.Kind == grading.KindGrid {
		fmt.Printf("Answers: %s\n", strings.Join(key.Labels(), " "))
	}
	return nil
}

func readMarks(path string) ([]geometry.PointInt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pairs [][2]int
	if err := json.Unmarshal(data, &pairs); err == nil {
		pts := make([]geometry.PointInt, len(pairs))
		for i, p := range pairs {
			pts[i] = geometry.PointInt{X: p[0], Y: p[1]}
		}
		return pts, nil
	}
	var pts []geometry.PointInt
	if err := json.Unmarshal(data, &pts); err != nil {
		return nil, fmt.Errorf("parse marks %s: %w", path, err)
	}
	return pts, nil
}

func runScore(args []string) error {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	cf := addCommon(fs)
	keyPath := fs.String("key", "", "Key file written by register")
	asJSON := fs.Bool("json", false, "Print the full result as JSON")
	fs.Parse(args)

	if *keyPath == "" {
		return fmt.Errorf("-key is required")
	}
	kf, err := keyfile.Load(*keyPath)
	if err != nil {
		return err
	}
	g, data, err := cf.grader(kf.Apply)
	if err != nil {
		return err
	}

	res, err := g.ScoreSubmission(data, kf.Key)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(res)
	return nil
}

func printResult(res *score.Result) {
	if res.SheetLabel != "" {
		fmt.Printf("Sheet: %s\n", res.SheetLabel)
	}
	fmt.Printf("Orientation: %s\n", res.Orientation)
	fmt.Printf("\n%-8s %-12s %-12s %s\n", "Question", "Expected", "Detected", "Verdict")
	for _, q := range res.Questions {
		fmt.Printf("%-8d %-12s %-12s %s\n", q.Question, q.Expected, q.Detected, q.Verdict)
	}
	fmt.Printf("\nScore: %d/%d (%.1f%%)\n", res.Correct, res.Total, res.Percent())
	if res.SizeMismatch {
		fmt.Println("Warning: sheet layout does not match the key")
	}
}

func runDetect(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	cf := addCommon(fs)
	annotate := fs.String("annotate", "", "Write an annotated PNG to this path")
	fs.Parse(args)

	g, data, err := cf.grader(nil)
	if err != nil {
		return err
	}
	in, err := g.Inspect(data)
	if err != nil {
		return err
	}
	defer in.Close()

	p := g.Params()
	fmt.Printf("Sheet: %dx%d\n", in.Gray.Cols(), in.Gray.Rows())
	fmt.Printf("Orientation: %s\n", in.Decision)
	fmt.Printf("Hough: dp=%.1f minDist=%.0f param1=%.0f param2=%.0f radius %d-%d\n",
		p.HoughDP, p.HoughMinDist, p.HoughParam1, p.HoughParam2, p.MinRadius, p.MaxRadius)

	fmt.Printf("\n%-6s %8s %8s %8s %8s\n", "#", "X", "Y", "Radius", "Filled")
	filled := 0
	for i, m := range in.Marks {
		fmt.Printf("%-6d %8d %8d %8d %8v\n", i+1, m.Center.X, m.Center.Y, m.Radius, m.Filled)
		if m.Filled {
			filled++
		}
	}
	fmt.Printf("\nTotal: %d marks, %d filled\n", len(in.Marks), filled)

	if *annotate != "" {
		out := grading.Annotate(in.Gray, in.Marks)
		defer out.Close()
		img, err := sheet.ToImage(out)
		if err != nil {
			return err
		}
		if err := imaging.Save(img, *annotate); err != nil {
			return fmt.Errorf("failed to write %s: %w", *annotate, err)
		}
		fmt.Printf("Annotated image written to %s\n", *annotate)
	}
	return nil
}
