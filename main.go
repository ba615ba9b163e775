package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticketshop/controllers"
	"ticketshop/database"
	"ticketshop/kafka"
	"ticketshop/models"
	aws_pkg "ticketshop/pkg/aws"
	"ticketshop/repository"
	"ticketshop/routes"
	"ticketshop/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("Config load failed", zap.Error(err))
	}

	// --- Database ---
	db, err := database.ConnectPostgres(database.PostgresConfig{
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		DBName:   cfg.PostgresDB,
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		SSLMode:  cfg.PostgresSSLMode,
		TimeZone: cfg.PostgresTimeZone,
	}, logger, &models.Coupon{}, &models.Order{})
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}

	// --- Redis (pending coupon associations) ---
	redisClient, err := database.NewRedisClient(cfg.RedisURL, logger)
	if err != nil {
		logger.Fatal("Redis connection failed", zap.Error(err))
	}

	// --- Kafka ---
	producer := kafka.NewOrderEventProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
	defer producer.Close()

	// --- AWS SNS (best-effort, non-fatal) ---
	var snsClient aws_pkg.SNSPublisher
	if cfg.OrderSNSTopicARN != "" {
		awsCfg, awsErr := aws_pkg.LoadAWSConfig(context.Background())
		if awsErr != nil {
			logger.Warn("Failed to load AWS config, SNS publishing disabled", zap.Error(awsErr))
		} else {
			snsClient = aws_pkg.NewSNSClient(awsCfg)
		}
	}

	// --- Payment providers and external collaborators ---
	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	cryptoSvc := services.NewCryptoPayService(cfg.CryptoPayBaseURL, cfg.CryptoPayAPIKey, cfg.CryptoPayWebhookSecret)
	invoiceRenderer := services.NewHTTPInvoiceRenderer(cfg.InvoiceServiceURL)
	chatNotifier := services.NewHTTPChatNotifier(cfg.ChatGatewayURL, cfg.ChatBotToken)

	// --- Dependency injection ---
	couponRepo := repository.NewGormCouponRepository(db)
	orderRepo := repository.NewGormOrderRepository(db)
	pendingRepo := repository.NewRedisPendingCouponRepository(redisClient, cfg.PendingCouponTTL)

	couponService := services.NewCouponService(couponRepo, logger)
	orderService := services.NewOrderService(
		orderRepo, couponRepo, pendingRepo,
		stripeSvc, cryptoSvc,
		producer, snsClient, cfg.OrderSNSTopicARN,
		invoiceRenderer, chatNotifier,
		cfg.PublicBaseURL, logger,
	)

	couponController := controllers.NewCouponController(couponService)
	orderController := controllers.NewOrderController(orderService)
	webhookController := controllers.NewWebhookController(orderService, stripeSvc, cryptoSvc, logger)

	// --- HTTP router ---
	r := gin.New()
	r.Use(gin.Recovery())

	// Structured HTTP request logging
	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		switch {
		case status >= 500:
			logger.Error("http_request", fields...)
		case status >= 400:
			logger.Warn("http_request", fields...)
		default:
			logger.Info("http_request", fields...)
		}
	})

	// Request timeout middleware
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	routes.RegisterRoutes(r, couponController, orderController, webhookController)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": "ticketshop"})
	})

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Info("Ticket shop started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Initiating graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("Redis close error", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		logger.Error("Database close error", zap.Error(err))
	}

	log.Println("Ticket shop stopped gracefully")
}
