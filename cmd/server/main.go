package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-polls/internal/cache"
	"github.com/weiawesome/wes-io-polls/internal/config"
	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/internal/fanout"
	"github.com/weiawesome/wes-io-polls/internal/gateway"
	"github.com/weiawesome/wes-io-polls/internal/handler"
	"github.com/weiawesome/wes-io-polls/internal/hub"
	"github.com/weiawesome/wes-io-polls/internal/identity"
	"github.com/weiawesome/wes-io-polls/internal/idgen"
	"github.com/weiawesome/wes-io-polls/internal/ratelimit"
	"github.com/weiawesome/wes-io-polls/internal/repository"
	"github.com/weiawesome/wes-io-polls/internal/service"
	"github.com/weiawesome/wes-io-polls/pkg/database"
	"github.com/weiawesome/wes-io-polls/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-polls/pkg/log"
	"github.com/weiawesome/wes-io-polls/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "polls-server",
	})
	logger := pkglog.L()

	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		TimeZone:        cfg.Database.TimeZone,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	pollRepo := repository.NewGormPollRepository(db)
	roomRepo := repository.NewGormRoomRepository(db)
	userRepo := repository.NewGormUserRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)
	presenceRepo := repository.NewGormPresenceRepository(db)

	var pollCache cache.PollCache = cache.NewNoopPollCache()
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisPollCache(cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		pollCache = rc
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis cache connected")
	}
	defer pollCache.Close()

	tokens, err := jwt.NewManager(cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token manager")
	}

	limiter := ratelimit.New(map[ratelimit.Action]ratelimit.Rule{
		ratelimit.ActionVote:       {Limit: cfg.RateLimit.Vote.Limit, Window: cfg.RateLimit.Vote.Window},
		ratelimit.ActionPollCreate: {Limit: cfg.RateLimit.PollCreate.Limit, Window: cfg.RateLimit.PollCreate.Window},
		ratelimit.ActionChatSend:   {Limit: cfg.RateLimit.ChatSend.Limit, Window: cfg.RateLimit.ChatSend.Window},
	})
	ids := idgen.New()

	h := hub.NewHub()
	fan := fanout.New(h, pollRepo, roomRepo)

	pollService := service.NewPollService(pollRepo, pollCache, limiter, fan, ids, service.PollOptions{
		CreateRequiresAdmin: cfg.Poll.CreateRequiresAdmin,
		CacheTTL:            cfg.Redis.CacheTTL,
	})
	chatService := service.NewChatService(messageRepo, pollRepo, roomRepo, limiter, fan, ids, service.ChatOptions{
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		HistorySize:      cfg.Chat.HistorySize,
	})
	roomService := service.NewRoomService(roomRepo, fan, ids)
	presenceService := service.NewPresenceService(presenceRepo, userRepo)
	identityService := identity.NewService(userRepo, tokens, ids, fan)

	gw := gateway.New(fan, pollService, chatService, presenceService, identityService, cfg.WebSocket)
	identityService.SetTerminator(gw)

	httpHandler := handler.NewHandler(
		identityService,
		pollService,
		chatService,
		roomService,
		presenceService,
		middleware.NewAuthMiddleware(identityService, domain.ErrTokenRequired),
	)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger, "/health"))
	httpHandler.RegisterRoutes(r)
	gw.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("polls-server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.RateLimit.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				n := limiter.Sweep()
				tokens.CleanupExpiredRevocations()
				logger.Debug().Int("rate_keys_dropped", n).Msg("sweep completed")
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down polls-server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
		// Hijacked websocket connections are not tracked by Shutdown.
		for _, userID := range h.ConnectedUsers() {
			gw.DisconnectUser(userID)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("polls-server stopped")
}
