// Command omrserver serves the grader over HTTP and optionally scores sheets
// dropped into an inbox directory.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"omr-grader/internal/api"
	"omr-grader/internal/config"
	"omr-grader/internal/grading"
	"omr-grader/internal/inbox"
	"omr-grader/internal/keyfile"
	"omr-grader/internal/ocr"
	"omr-grader/internal/store"
	"omr-grader/internal/version"

	"github.com/gin-gonic/gin"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	envFile := flag.String("env", ".env", "dotenv file loaded before reading the environment")
	keyPath := flag.String("key", "", "Key file to preload into the session")
	headerOCR := flag.Bool("ocr", false, "Read the header region with Tesseract")
	idMode := flag.Bool("ids", false, "Restrict header OCR to student-ID characters")
	flag.Parse()

	config.LoadDotEnv(*envFile)
	cfg := config.Load()
	log.Printf("starting %s", version.String())

	params, err := config.LoadParams(cfg.ParamsFile)
	if err != nil {
		log.Fatal(err)
	}

	session := grading.NewSession()
	var loadedKey *keyfile.File
	if *keyPath != "" {
		loadedKey, err = keyfile.Load(*keyPath)
		if err != nil {
			log.Fatal(err)
		}
		params = loadedKey.Apply(params)
		session.Replace(loadedKey.Key)
		log.Printf("loaded %d-question %s key from %s", loadedKey.Key.QuestionCount, loadedKey.Key.Kind, *keyPath)
	}

	grader, err := grading.NewGrader(params)
	if err != nil {
		log.Fatal(err)
	}
	grader.SetQuestionLimit(cfg.QuestionLimit)
	if *headerOCR {
		engine, err := ocr.NewEngine("eng")
		if err != nil {
			log.Printf("header OCR disabled: %v", err)
		} else {
			defer engine.Close()
			engine.SetIDMode(*idMode)
			grader.SetLabelReader(engine)
		}
	}

	current := grading.NewCurrent(grader)
	if cfg.ParamsFile != "" {
		if r := config.NewParamsReloader(cfg.ParamsFile, 2*time.Second); r != nil {
			r.OnChange(func(p config.Params) {
				if kf := loadedKey; kf != nil {
					p = kf.Apply(p)
				}
				if err := current.Reload(p); err != nil {
					log.Printf("params reload: %v", err)
				}
			})
			r.Start()
			defer r.Stop()
		}
	}

	var results api.ResultStore
	var st *store.Store
	if cfg.DBDSN != "" {
		st, err = store.Open(cfg.DBDSN, cfg.DBAutoMigrate)
		if err != nil {
			log.Fatal(err)
		}
		results = st
	} else {
		log.Printf("DB_DSN not set, results are not persisted")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.InboxDir != "" {
		sc := &inbox.Scorer{Grader: current, Session: session}
		if st != nil {
			sc.Results = st
		}
		go runInbox(ctx, cfg.InboxDir, sc)
	}

	r := gin.Default()
	api.NewServer(current, session, results).SetupRoutes(r)

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("listening on %s", ln.Addr())
	if err := api.Serve(ctx, ln, r); err != nil {
		log.Printf("server: %v", err)
	}
}

// runInbox scores every sheet already in dir that has no result file yet,
// then each new one.
func runInbox(ctx context.Context, dir string, sc *inbox.Scorer) {
	existing, err := inbox.Existing(dir)
	if err != nil {
		log.Printf("inbox: %v", err)
		return
	}
	for _, p := range existing {
		if !inbox.Scored(p) {
			sc.Handle(p)
		}
	}
	if err := inbox.NewWatcher(dir).Run(ctx, sc.Handle); err != nil {
		log.Printf("inbox: %v", err)
	}
}
