package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"support-service/internal/db"
	"support-service/internal/handlers"
	"support-service/internal/identity"
	"support-service/internal/middleware"
	"support-service/internal/moderation"
	"support-service/internal/observability"
	"support-service/internal/presence"
	"support-service/internal/rabbitmq"
	"support-service/internal/repositories"
	"support-service/internal/telemetry"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	ctx := context.Background()

	shutdownTracing, err := observability.SetupTracing(ctx, "support-service", getEnv("OTLP_ENDPOINT", ""))
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_ADDR", "localhost:6379"),
	})
	defer redisClient.Close()

	publisher := rabbitmq.NewPublisher(getEnv("AMQP_URL", ""), getEnv("AMQP_EXCHANGE", "support.events"))
	defer publisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(publisher))

	emitter := telemetry.NewAuditEmitter(publisher, "support.audit", "support-service", getEnv("ENVIRONMENT", "dev"))

	provider := identity.NewHTTPProvider(getEnv("AUTH_BASE_URL", "http://localhost:8080"))
	tracker := presence.NewRedisTracker(redisClient, presenceWindow())
	filter := moderation.NewHTMLStripFilter()

	messageRepo := repositories.NewMessageRepo(database)
	reactionRepo := repositories.NewReactionRepo(database)
	ticketRepo := repositories.NewTicketRepo(database)

	messageHandler := handlers.NewMessageHandler(messageRepo, reactionRepo, ticketRepo, filter, emitter)
	ticketHandler := handlers.NewTicketHandler(ticketRepo, messageRepo, emitter)
	presenceHandler := handlers.NewPresenceHandler(tracker)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("support-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	identityMiddleware := middleware.IdentityMiddleware(provider)
	sendLimiter := middleware.NewTokenRateLimiter(10, time.Minute, 10*time.Minute)
	defer sendLimiter.Cancel()

	router.POST("/messages", identityMiddleware, sendLimiter.Middleware(), messageHandler.PostMessage)
	router.GET("/messages", identityMiddleware, messageHandler.ListMessages)
	router.DELETE("/messages/:message_id", identityMiddleware, messageHandler.DeleteMessage)
	router.DELETE("/messages", identityMiddleware, messageHandler.ClearRoom)
	router.POST("/messages/:message_id/reactions", identityMiddleware, messageHandler.ToggleReaction)

	router.POST("/tickets", identityMiddleware, ticketHandler.CreateTicket)
	router.GET("/tickets", identityMiddleware, ticketHandler.ListTickets)
	router.GET("/tickets/:ticket_id", identityMiddleware, ticketHandler.GetTicket)
	router.POST("/tickets/:ticket_id/close", identityMiddleware, ticketHandler.CloseTicket)

	router.POST("/presence/heartbeat", identityMiddleware, presenceHandler.Heartbeat)
	router.GET("/presence/online", identityMiddleware, presenceHandler.Online)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	port := getEnv("PORT", "8086")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func presenceWindow() time.Duration {
	raw := getEnv("PRESENCE_WINDOW_SECONDS", "45")
	if seconds, err := time.ParseDuration(raw + "s"); err == nil && seconds > 0 {
		return seconds
	}
	return 45 * time.Second
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
