package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kioskhub/kiosk-hub-go/internal/agent/cache"
	"github.com/kioskhub/kiosk-hub-go/internal/agent/client"
	"github.com/kioskhub/kiosk-hub-go/internal/agent/display"
	"github.com/kioskhub/kiosk-hub-go/internal/agent/executor"
	"github.com/kioskhub/kiosk-hub-go/internal/config"
)

const clientVersion = "1.0.0"

func main() {
	cfg, err := config.LoadAgent()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	driver := display.NewLogDriver(nil)
	contentCache := cache.NewManager(cfg.ContentCacheDir, nil)

	ctx, cancel := context.WithCancel(context.Background())

	hub := client.New(driver, contentCache, client.Options{
		HubURL:        cfg.HubURL,
		Token:         cfg.DeviceToken,
		ClientVersion: clientVersion,
		Restart: func() {
			log.Printf("restarting on hub request")
			cancel()
		},
	})

	ex := executor.New(driver, contentCache, hub, executor.Config{
		DefaultRotation: time.Duration(cfg.DefaultRotationMs) * time.Millisecond,
	})
	hub.SetExecutor(ex)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdownCh
		cancel()
	}()

	log.Printf("kiosk-agent connecting to %s", cfg.HubURL)
	hub.Run(ctx)
	ex.Stop()
}
