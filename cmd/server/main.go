package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	ginadapter "screener-backend/internal/delivery/http"
	wsdelivery "screener-backend/internal/delivery/websocket"
	"screener-backend/internal/config"
	"screener-backend/internal/executor"
	"screener-backend/internal/infrastructure/binance"
	"screener-backend/internal/infrastructure/streaming"
	"screener-backend/internal/movers"
	"screener-backend/internal/notify"
	"screener-backend/internal/obslog"
	"screener-backend/internal/repository"
	"screener-backend/internal/strategy"
	"screener-backend/internal/universe"
)

func main() {
	cfg := config.Load()
	obslog.Init(cfg.LogLevel)
	defer obslog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := binance.NewLimiter()
	client := binance.NewClient(limiter)
	var tradingClient *binance.TradingClient
	if cfg.TradingEnabled {
		tradingClient = binance.NewTradingClient(cfg.ExchangeAPIKey, cfg.ExchangeAPISecret, cfg.RecvWindowMs, limiter)
	}

	uni := universe.NewSelector(client)
	pipeline := movers.NewPipeline(uni, client, client)

	exec := executor.New(tradingClient, client, cfg.Leverage)
	if err := exec.Initialize(ctx); err != nil {
		obslog.Errorf("executor initialize failed err=%v", err)
	}

	streamer := streaming.NewStreamer(client)

	notifier, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		obslog.Warnf("telegram notifier disabled err=%v", err)
		notifier = nil
	}

	moversRepo := repository.NewInMemoryMoversRepository()
	positionsRepo := repository.NewInMemoryPositionsRepository()

	engine := strategy.New(exec, streamer, notifier, positionsRepo, cfg.KSlBuffer)

	go runCycleLoop(ctx, cfg.RefreshInterval, pipeline, engine, moversRepo)
	go runDeliveryServer(ctx, cfg.HTTPListenAddr, moversRepo, positionsRepo)

	<-ctx.Done()
	obslog.Infof("shutting down")
}

// runCycleLoop runs the Movers Pipeline and Strategy Engine on a fixed
// interval, one cycle at a time: a cycle still in flight when the next
// tick fires is simply skipped.
func runCycleLoop(ctx context.Context, interval time.Duration, pipeline *movers.Pipeline, engine *strategy.Engine, moversRepo *repository.InMemoryMoversRepository) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	running := make(chan struct{}, 1)
	running <- struct{}{}

	runOnce := func() {
		select {
		case <-running:
		default:
			obslog.Warnf("cycle skipped: previous cycle still running")
			return
		}
		defer func() { running <- struct{}{} }()

		result, err := pipeline.Run(ctx)
		if err != nil {
			obslog.Errorf("movers pipeline failed err=%v", err)
			return
		}
		moversRepo.Save(result)
		engine.OnCycle(ctx, result)
	}

	runOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// runDeliveryServer exposes the read-only movers/positions HTTP and
// websocket surfaces described as an optional query surface.
func runDeliveryServer(ctx context.Context, addr string, moversRepo *repository.InMemoryMoversRepository, positionsRepo *repository.InMemoryPositionsRepository) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	ginadapter.NewMoversHandler(moversRepo).Register(router)
	ginadapter.NewPositionsHandler(positionsRepo).Register(router)

	wsHandler := wsdelivery.NewHandler(moversRepo, positionsRepo)
	router.GET("/ws", gin.WrapF(wsHandler.Handle))

	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	obslog.Infof("delivery server listening addr=%s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		obslog.Errorf("delivery server failed err=%v", err)
	}
}
