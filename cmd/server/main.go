package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kdimtricp/shottime/internal/ai"
	"github.com/kdimtricp/shottime/internal/api"
	"github.com/kdimtricp/shottime/internal/capture"
	"github.com/kdimtricp/shottime/internal/clock"
	"github.com/kdimtricp/shottime/internal/config"
	"github.com/kdimtricp/shottime/internal/countdown"
	"github.com/kdimtricp/shottime/internal/database"
	"github.com/kdimtricp/shottime/internal/models"
	"github.com/kdimtricp/shottime/internal/notify"
	"github.com/kdimtricp/shottime/internal/schedule"
	"github.com/kdimtricp/shottime/internal/screenshot"
	"github.com/kdimtricp/shottime/internal/storage"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(database.Config{SQLitePath: cfg.DBPath})
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	store := database.NewConfigStore(database.NewKVStore(db))
	captureRepo := database.NewCaptureRepository(db)

	timeSync := clock.NewSynchronizer(cfg.TimeURL, &http.Client{Timeout: cfg.TimeSyncTimeout}, clock.LoadLocation(cfg.TimeZone))
	syncCtx, cancelSync := context.WithTimeout(ctx, cfg.TimeSyncTimeout)
	defer cancelSync()
	timeSync.SyncAsync(syncCtx)

	slots := initialSlots(store, cfg.SlotsFile)
	settings := store.LoadSettings()

	hub := notify.NewHub()
	defer hub.Close()

	var notifier notify.SystemNotifier = hub
	var prompter storage.Prompter = storage.StaticPrompter(cfg.AutoGrantDirectory)
	if cfg.DesktopNotifications {
		desktop := notify.NewDesktopNotifier(30 * time.Second)
		notifier = notify.FanOut{hub, desktop}
		if !cfg.AutoGrantDirectory {
			prompter = desktop
		}
	}

	var capturer capture.DisplayCapturer
	if ffmpeg, err := capture.NewFFmpegCapturer(cfg.CaptureFormat, cfg.CaptureInput); err != nil {
		log.Printf("Warning: screen capture unavailable: %v", err)
	} else {
		capturer = ffmpeg
	}

	var analyzer capture.Analyzer
	if cfg.GoogleVisionKey != "" {
		aiConfig := ai.NewConfig()
		aiConfig.GoogleVisionKey = cfg.GoogleVisionKey
		aiConfig.Endpoint = cfg.VisionEndpoint
		aiConfig.MinConfidence = cfg.MinConfidence
		aiConfig.MaxResults = cfg.MaxFaces

		vision := ai.NewGoogleVisionClientFromConfig(aiConfig)
		analyzer = ai.NewAnalyzer(vision, vision, aiConfig.DetectOptions())
	} else {
		log.Printf("Face analysis not configured. Set SHOTTIME_GOOGLE_VISION_KEY or GOOGLE_VISION_API_KEY")
	}

	downloads := storage.NewDownloadQueue(cfg.DownloadQueueSize)

	svc := screenshot.NewService(screenshot.Config{
		Clock:     timeSync,
		Schedule:  schedule.NewEngine(slots),
		Countdown: countdown.NewController(),
		Store:     store,
		Active:    store.LoadActive(),
		ResetDay:  store.LoadResetDay(),
		Settings:  settings,
		Capturer:  capturer,
		Saver:     capture.NewSaver(nil, screenshot.NewDownloader(downloads, hub)),
		Namer:     capture.NewNamer(store),
		Analyzer:  analyzer,
		Recorder:  captureRepo,
		Directories: func(path string) (storage.DirectoryHandle, error) {
			dir, err := storage.NewLocalDirectory(path, prompter)
			if err != nil {
				return nil, err
			}
			return dir, nil
		},
		Tones:       hub,
		Notifier:    notifier,
		Events:      hub,
		AutoCapture: cfg.AutoCapture,
	})
	hub.SetWelcome(func() any { return svc.State() })

	app := &api.App{
		Service:   svc,
		Downloads: downloads,
		Hub:       hub,
		Captures:  captureRepo,
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewRouter(app),
	}

	go func() {
		if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Scheduler stopped: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("Database path: %s", cfg.DBPath)
	log.Printf("Time zone: %s", timeSync.Location())
	log.Printf("Auto capture: %v", cfg.AutoCapture)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}

	svc.Wait()
}

// initialSlots prefers the persisted schedule, then the seed file, then the
// built-in defaults.
func initialSlots(store *database.ConfigStore, seedFile string) []models.TimeSlot {
	if slots, ok := store.LoadSlots(); ok {
		return slots
	}
	if seedFile != "" {
		slots, err := schedule.LoadSlotsFile(seedFile)
		if err == nil {
			log.Printf("Loaded %d slots from %s", len(slots), seedFile)
			return slots
		}
		log.Printf("Warning: %v", err)
	}
	return schedule.DefaultSlots()
}
