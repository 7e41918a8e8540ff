package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/archive"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/config"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/fraud"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/grocery"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/httpserver"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/rtc"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/scenario"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/sdr"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/telephony"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/wellness"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()
	if !cfg.HasLLM() {
		log.Fatalf("CEREBRAS_API_KEY is required")
	}

	fraudRepo := fraud.NewRepository(cfg.FraudDBPath)
	if err := fraudRepo.EnsureSchema(); err != nil {
		log.Fatalf("fraud db: %v", err)
	}

	orders, err := grocery.NewOrderRepository(filepath.Join(cfg.DataDir, "orders"))
	if err != nil {
		log.Fatalf("order store: %v", err)
	}

	deps := scenario.Deps{
		WellnessLog: wellness.NewLog(filepath.Join(cfg.DataDir, "wellness_log.json")),
		Catalog:     grocery.LoadCatalog(cfg.CatalogPath),
		Recipes:     grocery.LoadRecipes(cfg.RecipesPath),
		Orders:      orders,
		Personas:    sdr.DefaultPersonas(),
		Leads:       sdr.NewLeadBook(filepath.Join(cfg.DataDir, "leads.json")),
		FraudRepo:   fraudRepo,
	}

	var archiver *archive.Archiver
	if cfg.HasSupabase() {
		store, err := archive.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
		if err != nil {
			log.Fatalf("supabase: %v", err)
		}
		archiver = archive.NewArchiver(store)
	}

	var telephonySvc *telephony.Service
	if cfg.HasTwilio() {
		var store archive.Store
		if cfg.HasSupabase() {
			store, _ = archive.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
		}
		telephonySvc = telephony.New(telephony.Config{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
		}, store)
	}

	h := rtc.NewHandler(cfg.AssemblyAIKey, deps).
		WithLLM(cfg.CerebrasKey, cfg.CerebrasModelID).
		WithTTS(cfg.DeepgramKey, cfg.DeepgramVoice).
		WithArchiver(archiver)

	srv := httpserver.New(h, telephonySvc)

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           srv.Echo,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}
