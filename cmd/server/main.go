package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/linemk/kronor-shop/internal/app"
	"github.com/linemk/kronor-shop/internal/app/handlers"
	"github.com/linemk/kronor-shop/internal/cloud"
	"github.com/linemk/kronor-shop/internal/config"
	security "github.com/linemk/kronor-shop/internal/jwt-new"
	"github.com/linemk/kronor-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/kronor-shop/internal/lib/logger"
	"github.com/linemk/kronor-shop/internal/lib/logger/handlers/urllog"
	"github.com/linemk/kronor-shop/internal/notify"
	"github.com/linemk/kronor-shop/internal/service"
	"github.com/linemk/kronor-shop/internal/storage"
	"github.com/pkg/errors"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env), slog.String("queue", cfg.Queue.Backend))

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(initCtx, log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	// очередь подтверждений
	notifier, closeNotifier, err := newNotifier(log, application)
	if err != nil {
		log.Error("failed to initialize notifier", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize notifier"))
	}
	defer closeNotifier()

	// картинки товаров; без бакета добавление с картинкой вернёт ошибку
	var images service.ImageStore
	if cfg.Storage.Bucket != "" {
		images = cloud.NewImageStore(cloud.NewS3Client(application.AWS), cfg.Storage.Bucket, cfg.AWS.Region, cfg.Storage.ACL)
	} else {
		log.Warn("storage bucket is not configured, product images are disabled")
	}

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)

	orderService := service.NewOrderService(log, application.DB, userRepo, productRepo, orderRepo, notifier, cfg.Queue.DispatchTimeout)
	productService := service.NewProductService(log, productRepo, images)
	userService := service.NewUserService(log, userRepo)

	keys := security.NewKeyCache(security.KeyCacheConfig{
		URL:                cfg.JWKSURL(),
		TTL:                cfg.Cognito.KeyTTL,
		MinRefreshInterval: cfg.Cognito.MinRefreshInterval,
	})
	verifier := security.NewVerifier(keys, cfg.Issuer(), cfg.Cognito.ClientID)

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", handlers.HealthHandler(log, application.DB))
	router.Get("/products", handlers.ListProductsHandler(log, productService))
	router.Get("/products/{pid}", handlers.GetProductHandler(log, productService))
	router.Post("/add-product", handlers.AddProductHandler(log, productService))
	router.Post("/place-order", handlers.PlaceOrderHandler(log, orderService))
	router.Get("/user-orders/{user_sub}", handlers.UserOrdersHandler(log, orderService))

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware(verifier))
		// регистрация пользователя после входа через Cognito
		r.Post("/users", handlers.TrackUserHandler(log, userService))
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}

// newNotifier выбирает транспорт очереди по конфигу.
func newNotifier(log *slog.Logger, application *app.App) (service.OrderNotifier, func(), error) {
	cfg := application.Config
	switch cfg.Queue.Backend {
	case config.QueueBackendKafka:
		publisher := notify.NewKafkaPublisher(notify.NewKafkaWriter(cfg.Queue.Kafka.Brokers, cfg.Queue.Kafka.Topic))
		return publisher, func() {
			if err := publisher.Close(); err != nil {
				log.Error("failed to close kafka writer", slog.Any("error", err))
			}
		}, nil
	case config.QueueBackendSQS:
		client := sqs.NewFromConfig(application.AWS)
		return notify.NewSQSPublisher(log, client, cfg.Queue.Name, cfg.Queue.URL), func() {}, nil
	default:
		return nil, nil, errors.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}
