package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qrave1/GoldLink/internal/application/config"
	"github.com/qrave1/GoldLink/internal/application/constant"
	"github.com/qrave1/GoldLink/internal/application/metric"
	"github.com/qrave1/GoldLink/internal/infra/adapters/memory"
	"github.com/qrave1/GoldLink/internal/infra/ports/http/handlers"
	"github.com/qrave1/GoldLink/internal/infra/ports/http/server"
	"github.com/qrave1/GoldLink/internal/infra/ports/turn"
	"github.com/qrave1/GoldLink/internal/usecase"
)

const shutdownTimeout = 5 * time.Second

func runApp() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: cfg.SlogLevel()},
			),
		),
	)

	slog.Info(
		"Running app",
		slog.Bool("debug", cfg.Debug),
		slog.String("storage", cfg.Storage.Driver),
	)

	store, err := openStorage(ctx, cfg)
	if err != nil {
		slog.Error("open storage", slog.Any(constant.Error, err))
		os.Exit(1)
	}
	defer func() {
		if err := store.close(); err != nil {
			slog.Error("close storage", slog.Any(constant.Error, err))
		}
	}()

	if cfg.Turn.Embedded {
		turnSrv, err := turn.NewServer(cfg.Turn, cfg.CoturnServer.Secret)
		if err != nil {
			slog.Error("start turn server", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		defer turnSrv.Close()
	}

	secret := []byte(cfg.JWTSecret)
	connRepo := memory.NewConnectionRepository()

	identityUsecase := usecase.NewIdentityUsecase(secret)
	userUsecase := usecase.NewUserUsecase(secret, store.users)
	sessionUsecase := usecase.NewSessionUsecase(store.chats, cfg.Chat.HistoryLimit)
	relayUsecase := usecase.NewRelayUsecase(store.chats, sessionUsecase)
	callUsecase := usecase.NewCallUsecase(sessionUsecase, cfg.Calls.RingTimeout)
	presenceUsecase := usecase.NewPresenceUsecase(connRepo, sessionUsecase)
	connectionUsecase := usecase.NewConnectionUsecase(identityUsecase, sessionUsecase, callUsecase, presenceUsecase)

	authHandler := handlers.NewAuthHandler(cfg, userUsecase)
	sessionHandler := handlers.NewSessionHandler(sessionUsecase, callUsecase, presenceUsecase, connectionUsecase)
	iceHandler := handlers.NewIceHandler(cfg)
	wsHandler := handlers.NewWebSocketHandler(cfg, connectionUsecase, relayUsecase, callUsecase)

	echoSrv := server.New(identityUsecase, authHandler, sessionHandler, iceHandler, wsHandler)
	metricSrv := metric.NewServer()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server starting", slog.String("port", cfg.Port))

		if err := echoSrv.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		if err := metricSrv.Start(":" + cfg.MetricPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		slog.Info("Shutting down servers")

		// Контекст запуска уже отменён, на остановку берём свой
		timeoutCtx, timeoutCancel := context.WithTimeout(context.WithoutCancel(gCtx), shutdownTimeout)
		defer timeoutCancel()

		return errors.Join(
			echoSrv.Shutdown(timeoutCtx),
			metricSrv.Shutdown(timeoutCtx),
		)
	})

	if err = g.Wait(); err != nil {
		slog.Error("HTTP server failed", slog.Any(constant.Error, err))
		os.Exit(1)
	}
}
