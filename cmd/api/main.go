package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"ambient-narrative-go/internal/config"
	"ambient-narrative-go/internal/logger"
	"ambient-narrative-go/internal/pipeline"
	"ambient-narrative-go/internal/processor"
	"ambient-narrative-go/internal/store"
	"ambient-narrative-go/internal/transcription"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "ambient-narrative-go").Info("starting service")

	cfg, err := config.Load("")
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	log.WithField("store_path", cfg.Store.Path).Info("opening run store")
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to open run store")
	}
	defer st.Close()

	pipe := pipeline.New(pipeline.WithLogger(log))
	client := transcription.NewClient(cfg.FetchTimeout(),
		transcription.WithMaxRetries(cfg.Transcription.MaxRetries),
		transcription.WithLogger(log),
	)
	proc := processor.New(pipe, client, processor.WithRecorder(st), processor.WithLogger(log))

	srv := &server{cfg: cfg, log: log, pipe: pipe, proc: proc, runs: st}

	addr := fmt.Sprintf(":%s", envOr("PORT", cfg.Server.Port))
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.routes(),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("listening")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}
