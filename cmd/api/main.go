package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/tiendago/tienda-api/internal/config"
	"github.com/tiendago/tienda-api/internal/events"
	"github.com/tiendago/tienda-api/internal/handler"
	"github.com/tiendago/tienda-api/internal/middleware"
	"github.com/tiendago/tienda-api/internal/repository"
	"github.com/tiendago/tienda-api/internal/service"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MongoDB
	mongoClient, err := repository.Connect(ctx, cfg.Mongo)
	if err != nil {
		log.Error("connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(cfg.Mongo.Database)
	log.Info("connected to MongoDB")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	amqpCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer amqpCh.Close()

	if err := events.Setup(amqpCh); err != nil {
		log.Error("setup RabbitMQ", "error", err)
		os.Exit(1)
	}
	log.Info("connected to RabbitMQ")

	// Repositories
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	txRunner := repository.NewTxRunner(mongoClient)

	if err := userRepo.EnsureIndexes(ctx); err != nil {
		log.Error("create user indexes", "error", err)
		os.Exit(1)
	}
	if err := productRepo.EnsureIndexes(ctx); err != nil {
		log.Error("create product indexes", "error", err)
		os.Exit(1)
	}
	if err := orderRepo.EnsureIndexes(ctx); err != nil {
		log.Error("create order indexes", "error", err)
		os.Exit(1)
	}

	// Services
	publisher := events.NewPublisher(amqpCh)
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	productSvc := service.NewProductService(productRepo, redisClient)
	orderSvc := service.NewOrderService(orderRepo, productRepo, userRepo, txRunner, redisClient, publisher)

	// Handlers
	authH := handler.NewAuthHandler(authSvc)
	productH := handler.NewProductHandler(productSvc)
	orderH := handler.NewOrderHandler(orderSvc)
	healthH := handler.NewHealthHandler(mongoClient, redisClient, amqpConn)

	// Router
	router := gin.Default()
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", authH.Register)
		auth.POST("/login", authH.Login)

		products := v1.Group("/products")
		products.GET("", productH.List)
		products.GET("/:id", productH.GetByID)

		admin := products.Group("", middleware.AuthMiddleware(cfg.JWT.Secret), middleware.AdminOnly())
		admin.POST("", productH.Create)
		admin.PUT("/:id", productH.Update)
		admin.DELETE("/:id", productH.Delete)

		orders := v1.Group("/orders", middleware.AuthMiddleware(cfg.JWT.Secret))
		orders.POST("", orderH.CreateOrder)
		orders.GET("", orderH.ListMyOrders)
		orders.GET("/all", middleware.AdminOnly(), orderH.ListAllOrders)
		orders.PUT("/:id/status", middleware.AdminOnly(), orderH.ChangeStatus)
		orders.DELETE("/:id", orderH.DeleteOrder)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	cancel()
	log.Info("server stopped")
}
