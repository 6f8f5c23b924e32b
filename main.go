package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messenger-service/internal/auth"
	"messenger-service/internal/config"
	"messenger-service/internal/db"
	"messenger-service/internal/delivery"
	"messenger-service/internal/grpcserver"
	"messenger-service/internal/handlers"
	"messenger-service/internal/logging"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/presence"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/repositories"
	"messenger-service/internal/services"
	"messenger-service/internal/storage"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogPretty, cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Info().Str("mode", rabbitmq.PublisherMode(publisher)).Str("reason", rabbitmq.PublisherNoopReason(publisher)).Msg("event publisher ready")
	auditor := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment)

	media, err := storage.New(cfg.S3)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init attachment storage")
	}

	userRepo := repositories.NewUserRepo(database)
	friendRepo := repositories.NewFriendRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	groupRepo := repositories.NewGroupRepo(database)

	coordinator := delivery.NewCoordinator(presence.NewRegistry(), presence.NewChannels())

	conversationService := services.NewConversationService(conversationRepo, messageRepo, groupRepo, userRepo)
	messageService := services.NewMessageService(messageRepo, conversationRepo, friendRepo, groupRepo, coordinator, cfg.RecallWindow)
	friendService := services.NewFriendService(friendRepo, userRepo, conversationService, messageService, coordinator)
	groupService := services.NewGroupService(groupRepo, userRepo, messageService, coordinator)
	userService := services.NewUserService(userRepo)

	authenticator := auth.NewAuthenticator(cfg.JWTSecret)
	hub := ws.NewHub(coordinator, conversationService, groupService, messageService)
	wsHandler := ws.NewHandler(hub, authenticator)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.RequestIDMiddleware())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(observability.RequestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", wsHandler.Handle)

	authMiddleware := middleware.AuthMiddleware(authenticator)
	handlers.Router{
		Users:   handlers.NewUserHandler(userService),
		Friends: handlers.NewFriendHandler(friendService, auditor),
		Chats:   handlers.NewChatHandler(conversationService, messageService, media, cfg.MaxUploadBytes, auditor),
		Groups:  handlers.NewGroupHandler(groupService, media, cfg.MaxUploadBytes, auditor),
	}.Register(router, authMiddleware)
	handlers.RegisterDebugRoutes(router.Group("/", authMiddleware), auditor, friendService, cfg.DebugRoutes)

	grpcSrv := grpcserver.New()
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to listen for grpc")
	}
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc server stopped")
		}
	}()
	go grpcSrv.Watch(ctx, 15*time.Second, database.PingContext)

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	grpcSrv.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracing shutdown")
	}
}
