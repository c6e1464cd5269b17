// Package api exposes the grader over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"omr-grader/internal/grading"
	"omr-grader/internal/score"
	"omr-grader/internal/sheet"
	"omr-grader/internal/store"
	"omr-grader/pkg/geometry"

	"github.com/gin-gonic/gin"
)

// MaxUploadBytes bounds a single sheet upload.
const MaxUploadBytes = 10 << 20

// Grader is the part of grading.Grader the HTTP layer needs.
type Grader interface {
	RegisterBase(data []byte, questionCount int, marks []geometry.PointInt, answers []string) (*grading.AnswerKey, error)
	ScoreSubmission(data []byte, key *grading.AnswerKey) (*score.Result, error)
}

// ResultStore persists scoring results. A nil store disables /results.
type ResultStore interface {
	Save(source, keyKind string, res *score.Result) (*store.Submission, error)
	List(limit int) ([]store.Submission, error)
}

// Server holds the handler dependencies.
type Server struct {
	grader  Grader
	session *grading.Session
	results ResultStore
}

// NewServer builds a Server. results may be nil.
func NewServer(g Grader, s *grading.Session, results ResultStore) *Server {
	return &Server{grader: g, session: s, results: results}
}

// SetupRoutes registers the endpoints on r.
func (s *Server) SetupRoutes(r *gin.Engine) {
	r.GET("/healthz", s.healthHandler)
	r.POST("/base", s.registerHandler)
	r.GET("/base", s.getBaseHandler)
	r.DELETE("/base", s.resetHandler)
	r.POST("/score", s.scoreHandler)
	r.GET("/results", s.listResultsHandler)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "key_loaded": s.session.Key() != nil})
}

func (s *Server) registerHandler(c *gin.Context) {
	data, name, ok := readImage(c)
	if !ok {
		return
	}
	count, err := strconv.Atoi(strings.TrimSpace(c.PostForm("questions")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "questions must be an integer"})
		return
	}
	marks, err := ParseMarks(c.PostForm("marks"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	answers := ParseAnswers(c.PostForm("answers"))

	key, err := s.grader.RegisterBase(data, count, marks, answers)
	if err != nil {
		writeError(c, "register "+name, err)
		return
	}
	s.session.Replace(key)
	c.JSON(http.StatusOK, gin.H{"key": key})
}

func (s *Server) getBaseHandler(c *gin.Context) {
	key := s.session.Key()
	if key == nil {
		writeError(c, "base", grading.ErrNoAnswerKey)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key})
}

func (s *Server) resetHandler(c *gin.Context) {
	s.session.Reset()
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (s *Server) scoreHandler(c *gin.Context) {
	key := s.session.Key()
	if key == nil {
		writeError(c, "score", grading.ErrNoAnswerKey)
		return
	}
	data, name, ok := readImage(c)
	if !ok {
		return
	}
	res, err := s.grader.ScoreSubmission(data, key)
	if err != nil {
		writeError(c, "score "+name, err)
		return
	}

	resp := gin.H{"result": res, "percent": res.Percent()}
	if s.results != nil {
		if sub, err := s.results.Save(name, string(key.Kind), res); err != nil {
			log.Printf("score: persisting %s: %v", name, err)
		} else {
			resp["submission_id"] = sub.ID
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listResultsHandler(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result persistence disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	subs, err := s.results.List(limit)
	if err != nil {
		writeError(c, "results", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": subs})
}

// readImage reads the "image" multipart file. On failure it writes the
// response and returns ok=false.
func readImage(c *gin.Context) (data []byte, name string, ok bool) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image missing"})
		return nil, "", false
	}
	if file.Size > MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("image too large (max %d MB)", MaxUploadBytes>>20)})
		return nil, "", false
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "open upload failed"})
		return nil, "", false
	}
	defer f.Close()
	data, err = io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read upload failed"})
		return nil, "", false
	}
	return data, file.Filename, true
}

// StatusFor maps pipeline errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, sheet.ErrDecode),
		errors.Is(err, grading.ErrInvalidQuestionCount),
		errors.Is(err, grading.ErrIncompleteKey),
		errors.Is(err, grading.ErrInvalidAnswer):
		return http.StatusBadRequest
	case errors.Is(err, grading.ErrNoAnswerKey):
		return http.StatusConflict
	case errors.Is(err, grading.ErrNoMarksDetected):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, op string, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s: %v", op, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// ParseMarks decodes captured click coordinates, either as
// [{"x":1,"y":2},...] or [[1,2],...]. An empty string means no marks.
func ParseMarks(raw string) ([]geometry.PointInt, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var pts []geometry.PointInt
	if err := json.Unmarshal([]byte(raw), &pts); err == nil {
		return pts, nil
	}
	var pairs [][2]int
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil, fmt.Errorf("marks must be a JSON array of points")
	}
	pts = make([]geometry.PointInt, len(pairs))
	for i, p := range pairs {
		pts[i] = geometry.PointInt{X: p[0], Y: p[1]}
	}
	return pts, nil
}

// ParseAnswers splits an answer string into letters. "ABCD", "A,B,C,D" and
// "A B C D" are equivalent.
func ParseAnswers(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.ContainsAny(raw, ", ;") {
		return strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	}
	answers := make([]string, 0, len(raw))
	for _, r := range raw {
		answers = append(answers, string(r))
	}
	return answers
}
