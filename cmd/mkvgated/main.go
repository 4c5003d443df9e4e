package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"

	"example.com/mkvgate/internal/common"
	"example.com/mkvgate/internal/config"
	"example.com/mkvgate/internal/server"
	"example.com/mkvgate/internal/validate"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (YAML or TOML)")
	addr := flag.String("addr", "", "listen address (overrides config port)")
	readTimeout := flag.Duration("read-timeout", 60*time.Second, "HTTP read timeout")
	writeTimeout := flag.Duration("write-timeout", 10*time.Minute, "HTTP write timeout")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log := common.Logger()
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal("load config", "err", err)
		}
		cfg = loaded
	}
	if err := os.MkdirAll(cfg.Server.StorageDir, 0o755); err != nil {
		log.Fatal("storage dir", "err", err)
	}
	closer := common.SetupLogging(common.LogOptions{
		Verbose:    *verbose || cfg.Logs.Verbose,
		File:       cfg.Logs.Path("mkvgated.log"),
		MaxSizeMB:  cfg.Logs.MaxSizeMB,
		MaxBackups: cfg.Logs.MaxBackups,
		MaxAgeDays: cfg.Logs.MaxAgeDays,
		Compress:   cfg.Logs.Compress,
	})
	defer closer.Close()
	log = common.Logger()
	if !*verbose && !cfg.Logs.Verbose {
		log.SetLevel(charmlog.InfoLevel)
	}

	opts := server.Options{
		StorageDir:     cfg.Server.StorageDir,
		Concurrency:    cfg.Server.Concurrency,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		Defaults: validate.Options{
			NoWarn:  cfg.Validate.NoWarn,
			Live:    cfg.Validate.Live,
			Details: cfg.Validate.Details,
			DivX:    cfg.Validate.DivX,
		},
	}
	if cfg.Output.History != "" {
		opts.History = common.NewHistory(cfg.Output.History)
	}
	srv, err := server.NewServer(opts)
	if err != nil {
		log.Fatal("server init", "err", err)
	}
	defer srv.Close()

	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	if *addr != "" {
		listenAddr = *addr
	}
	httpServer := &http.Server{
		Addr:         listenAddr,
		Handler:      server.NewRouter(srv),
		ReadTimeout:  *readTimeout,
		WriteTimeout: *writeTimeout,
	}

	log.Info("mkvgated listening", "addr", listenAddr, "slots", cfg.Server.Concurrency)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", "err", err)
		}
	}()

	<-shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("shutdown", "err", err)
	}
	log.Info("mkvgated stopped")
}
