package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"files-board/internal/adapters/jsonstore"
	"files-board/internal/adapters/localstorage"
	"files-board/internal/adapters/server"
	"files-board/internal/auth"
	"files-board/internal/config"
	"files-board/internal/shortlink"
	"files-board/internal/usecases"
)

const cmdHashPassword = "hash-password"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	cost := flag.Int("cost", 0, "bcrypt cost for hash-password (0 = default)")
	flag.Parse()

	if flag.Arg(0) == cmdHashPassword {
		if err := hashPassword(flag.Arg(1), *cost); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		return
	}

	cfg := config.LoadConfig(*configPath)
	setupLogging(cfg.Log)

	if err := run(cfg); err != nil {
		logrus.Fatalf("Server failed: %v", err)
	}
}

// hashPassword печатает bcrypt-хэш для вставки в auth.users[].password_hash.
func hashPassword(plaintext string, cost int) error {
	if plaintext == "" {
		return fmt.Errorf("usage: %s %s <password>", filepath.Base(os.Args[0]), cmdHashPassword)
	}
	digest, err := auth.NewBcryptHasher(cost).Hash(plaintext)
	if err != nil {
		return err
	}
	fmt.Println(digest)
	return nil
}

func setupLogging(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func run(cfg *config.Config) error {
	// Надо убедиться, что директория существует прежде чем запускать сервер.
	// Грубо говоря, чтобы нам было куда записывать.
	if err := os.MkdirAll(cfg.Storage.BasePath, cfg.File.DirPermissions); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.ShortLink.StateFile), cfg.File.DirPermissions); err != nil {
		return fmt.Errorf("failed to create short link state directory: %w", err)
	}

	osFs := afero.NewOsFs()
	fileStorage := localstorage.NewLocalStorageService(osFs, cfg.Storage.BasePath, cfg.File.DirPermissions)

	registry, err := auth.NewRegistry(auth.NewBcryptHasher(cfg.Auth.BcryptCost), cfg.Auth.Users)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	if registry.Len() == 0 {
		logrus.Warn("No users configured, every login will be rejected")
	}

	tokens, err := auth.NewTokens(auth.TokenConfig{
		SessionSecret:    []byte(cfg.Auth.SessionSecret),
		CapabilitySecret: []byte(cfg.Auth.CapabilitySecret),
		SessionTTL:       cfg.Auth.SessionTTL,
		CapabilityTTL:    cfg.Auth.CapabilityTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to configure tokens: %w", err)
	}

	linkStore, err := jsonstore.NewLinkStore(osFs, cfg.ShortLink.StateFile)
	if err != nil {
		return err
	}
	links, err := shortlink.NewIndex(linkStore, shortlink.Options{
		CodeLength:  cfg.ShortLink.CodeLength,
		MaxAttempts: cfg.ShortLink.MaxAttempts,
	})
	if err != nil {
		return err
	}

	fileUsecase, err := usecases.NewFileAccessUseCase(fileStorage, registry, tokens, links, cfg)
	if err != nil {
		return err
	}
	handler := server.NewHandler(fileUsecase, cfg.Routes, cfg.Server.MaxUploadSize, cfg.Messages)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler.Router(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":    addr,
			"storage": cfg.Storage.BasePath,
			"users":   registry.Len(),
		}).Info("Server running")
		if listenErr := srv.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			serveErr <- listenErr
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case listenErr := <-serveErr:
		return listenErr
	case <-quit:
	}

	// graceful shutdown, ограниченный по времени, чтобы не зависнуть на открытых соединениях.
	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logrus.Info("Server stopped gracefully")
	return nil
}
