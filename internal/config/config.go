// Package config provides pipeline thresholds and process configuration.
package config

import (
	"bufio"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds process-level settings read from the environment.
type Config struct {
	Port          string
	DBDSN         string // empty disables result persistence
	DBAutoMigrate bool
	InboxDir      string // empty disables inbox scoring
	ParamsFile    string // optional JSON overlay for Params
	QuestionLimit int    // upper bound accepted for question_count
}

// Load reads Config from the environment. Call LoadDotEnv first to pick up
// a local .env file.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		DBDSN:         os.Getenv("DB_DSN"),
		DBAutoMigrate: getBool("DB_AUTO_MIGRATE", true),
		InboxDir:      os.Getenv("INBOX_DIR"),
		ParamsFile:    os.Getenv("OMR_PARAMS"),
		QuestionLimit: clampQuestionLimit(getInt("OMR_QUESTION_LIMIT", MaxQuestions)),
	}
}

// MaxQuestions is the largest question count a sheet may declare.
const MaxQuestions = 200

// clampQuestionLimit keeps a configured limit inside 1..MaxQuestions.
func clampQuestionLimit(n int) int {
	if n < 1 || n > MaxQuestions {
		log.Printf("config: OMR_QUESTION_LIMIT=%d outside 1..%d, using %d", n, MaxQuestions, MaxQuestions)
		return MaxQuestions
	}
	return n
}

// LoadDotEnv loads key=value pairs from ./.env into the environment without
// overwriting variables that are already set. Lines starting with # are ignored.
func LoadDotEnv(path string) {
	if path == "" {
		path = ".env"
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if eq := strings.IndexByte(line, '='); eq > 0 {
			key := strings.TrimSpace(line[:eq])
			val := strings.Trim(strings.TrimSpace(line[eq+1:]), `"`)
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, val)
			}
		}
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getBool(k string, def bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "":
		return def
	case "false", "0", "no":
		return false
	default:
		return true
	}
}
