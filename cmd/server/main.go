package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"kinoliba/config"
	"kinoliba/handlers"
	"kinoliba/internal/database"
	"kinoliba/internal/filestore"
	"kinoliba/services/assist"
	"kinoliba/services/enrich"
	"kinoliba/services/hubble"
	"kinoliba/services/library"
	"kinoliba/services/resolver"
	"kinoliba/services/session"
	"kinoliba/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] config: %v", err)
	}

	if cfg.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // MB
			MaxBackups: 3,
			MaxAge:     30, // days
			Compress:   true,
		}))
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("[main] store: %v", err)
	}
	defer closeStore()

	catalog := hubble.NewClient(cfg.HubbleBaseURL)

	// assist.New returns a typed nil when no key is configured; keep the
	// interface nil in that case so the fallback is truly disabled.
	var identify resolver.Identifier
	var suggest *assist.Client
	if a := assist.New(cfg.OpenRouterAPIKey, cfg.OpenRouterModel); a != nil {
		identify = a
		suggest = a
	} else {
		log.Printf("[main] no OpenRouter key, assistant features disabled")
	}

	sessions := session.NewManager()
	libSvc := library.NewService(store)
	enricher := enrich.New(catalog, catalog)
	resolve := resolver.New(catalog, identify)

	// Pass an untyped nil when the assistant is off so the handler's nil
	// check works; a typed nil *assist.Client would defeat it.
	cards := handlers.NewCardsHandler(resolve, enricher, sessions, libSvc, catalog, nil)
	if suggest != nil {
		cards.Suggest = suggest
	}
	libHandler := handlers.NewLibraryHandler(libSvc)

	router := utils.NewRouter()
	handlers.RegisterRoutes(router, cards, libHandler)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("[main] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
}

func openStore(cfg *config.Config) (library.Store, func(), error) {
	switch cfg.StoreBackend {
	case "file":
		store, err := filestore.New(afero.NewOsFs(), cfg.LibraryDir())
		if err != nil {
			return nil, nil, err
		}
		log.Printf("[main] using file library store in %s", cfg.LibraryDir())
		return store, func() {}, nil
	default:
		store, err := database.Open(cfg.DatabasePath())
		if err != nil {
			return nil, nil, err
		}
		log.Printf("[main] using sqlite library store at %s", cfg.DatabasePath())
		return store, func() { store.Close() }, nil
	}
}
