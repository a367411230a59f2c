package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"adjutant.org/internal/action"
	"adjutant.org/internal/audit"
	"adjutant.org/internal/auth"
	"adjutant.org/internal/directory"
	"adjutant.org/internal/dispatch"
	"adjutant.org/internal/httpapi"
	"adjutant.org/internal/intent"
	"adjutant.org/internal/jobs"
	"adjutant.org/internal/mailintake"
	"adjutant.org/internal/obs"
	"adjutant.org/internal/session"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	// Локальная разработка: .env опционален, в проде переменные задаёт среда.
	_ = godotenv.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	loc := time.Local
	if tz := os.Getenv("ADJUTANT_TIMEZONE"); tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			log.Fatalf("load timezone %q: %v", tz, err)
		}
	}

	// Хранилища: Postgres, если задан DSN, иначе всё в памяти (dev-режим;
	// запланированные задания не переживут перезапуск).
	var (
		db       *sql.DB
		store    jobs.Store
		auditor  audit.Recorder
		registry auth.Registry
	)
	if dsn := os.Getenv("ADJUTANT_PG_DSN"); dsn != "" {
		var err error
		db, err = jobs.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = jobs.NewPGStore(db)
		auditor = audit.NewPGRecorder(db)
		registry = auth.NewPGRegistry(db)
	} else {
		log.Print("ADJUTANT_PG_DSN is empty, running with in-memory stores")
		store = jobs.NewInMemory()
		auditor = audit.NewInMemory()
		registry = auth.NewInMemoryRegistry()
	}

	// Исполнитель действий: local — настоящий PowerShell, иначе noop.
	var (
		exec     action.Executor
		resetter action.PasswordResetter
		searcher directory.Searcher
	)
	switch os.Getenv("ADJUTANT_ACTION_MODE") {
	case "local":
		runner := directory.LocalRunner{}
		actions := directory.NewActions(runner)
		exec, resetter = actions, actions
		searcher = directory.NewADSearcher(runner, os.Getenv("ADJUTANT_SEARCH_BASE"))
	default:
		noop := action.Noop{}
		exec, resetter = noop, noop
		searcher = staticSearcher{}
	}

	sched := jobs.NewScheduler(store, exec, auditor)

	rules := intent.NewRules(loc)
	svc := dispatch.NewService(
		rules,
		directory.NewResolver(searcher),
		session.NewManager(),
		sched,
		resetter,
		auditor,
		loc,
	)

	// Восстановление до приёма трафика: перевооружаем живые задания и
	// закрываем прерванные рестартом.
	recovery := jobs.NewRecovery(store, sched, auditor)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := recovery.Restore(ctx); err != nil {
		cancel()
		log.Fatalf("restore jobs: %v", err)
	}
	cancel()

	api := httpapi.New(httpapi.Config{
		Service:    svc,
		Parser:     mailintake.NewParser(rules),
		Jobs:       store,
		Operators:  registry,
		Superadmin: os.Getenv("ADJUTANT_SUPERADMIN"),
		ReadyProbe: httpapi.ReadyProbe{DB: db},
		Version:    version,
	})

	addr := os.Getenv("ADJUTANT_LISTEN")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting adjutant %s on %s", version, addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	sched.Close()
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

// staticSearcher backs the noop mode: every query resolves to nobody, so the
// pipeline can be exercised end to end without a directory.
type staticSearcher struct{}

func (staticSearcher) Search(context.Context, string) ([]directory.Identity, error) {
	return nil, nil
}
