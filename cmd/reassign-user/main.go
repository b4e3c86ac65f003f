// reassign-user — операторская утилита: удаляет пользователя с передачей его постов
// служебному пользователю или пересчитывает postCount категории.
//
//	reassign-user -config ./local.yaml -user <id>
//	reassign-user -config ./local.yaml -recount-category <id>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pribylovaa/go-content-platform/internal/config"
	"github.com/pribylovaa/go-content-platform/internal/hasher"
	"github.com/pribylovaa/go-content-platform/internal/monitor"
	"github.com/pribylovaa/go-content-platform/internal/service"
	csmongo "github.com/pribylovaa/go-content-platform/internal/storage/mongo"
	"github.com/pribylovaa/go-content-platform/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	var (
		configPath string
		userID     string
		categoryID string
		timeout    time.Duration
	)
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.StringVar(&userID, "user", "", "id of the user to delete; posts go to the sentinel user")
	flag.StringVar(&categoryID, "recount-category", "", "id of the category whose postCount is recomputed")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	if (userID == "") == (categoryID == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -user or -recount-category is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.MustLoad(configPath)

	lg := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(lg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	ctx = log.Into(ctx, lg.With("cmd", "reassign-user"))

	if err := run(ctx, cfg, userID, categoryID); err != nil {
		lg.Error("reassign_user_failed", slog.String("err", err.Error()))
		cancelTimeout()
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, userID, categoryID string) error {
	// Отдельный реестр: метрики утилите не нужны.
	mon := monitor.New(
		monitor.WithThreshold(cfg.Monitor.SlowThreshold),
		monitor.WithRegisterer(prometheus.NewRegistry()),
	)

	store, err := csmongo.New(ctx, cfg, mon)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = store.Close(context.Background()) }()

	svc := service.New(store, *cfg, hasher.New(cfg.Hash.Cost), nil)

	var out any
	if userID != "" {
		out, err = svc.DeleteUser(ctx, userID)
	} else {
		out, err = svc.RecountCategory(ctx, categoryID)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}
