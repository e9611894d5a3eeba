package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/deepak445566/cv/internal/auth"
	"github.com/deepak445566/cv/internal/cache"
	"github.com/deepak445566/cv/internal/config"
	"github.com/deepak445566/cv/internal/database"
	"github.com/deepak445566/cv/internal/handler"
	"github.com/deepak445566/cv/internal/logger"
	"github.com/deepak445566/cv/internal/media"
	middlewarepkg "github.com/deepak445566/cv/internal/middleware"
	"github.com/deepak445566/cv/internal/repository"
	"github.com/deepak445566/cv/internal/router"
	"github.com/deepak445566/cv/internal/service"
	"github.com/deepak445566/cv/internal/session"
	"github.com/deepak445566/cv/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal("failed to apply schema", zap.Error(err))
	}

	redisClient, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	sessions := session.NewStore(redisClient)

	usersRepo := repository.NewPGXUsersRepository(pool)
	productsRepo := repository.NewPGXProductsRepository(pool)
	cartsRepo := repository.NewPGXCartsRepository(pool)
	addressesRepo := repository.NewPGXAddressesRepository(pool)
	ordersRepo := repository.NewPGXOrdersRepository(pool)

	hub := ws.NewHub(log.Named("ws"))
	go hub.Run()
	defer hub.Stop()

	var uploader service.MediaUploader
	if cfg.MediaBaseURL != "" {
		uploader = media.NewClient(nil, cfg.MediaBaseURL)
	} else {
		log.Warn("MEDIA_BASE_URL not set, product image uploads are disabled")
	}

	authService := service.NewAuthService(usersRepo, tokens, sessions, log.Named("auth"))
	userService := service.NewUserService(usersRepo)
	productsService := service.NewProductsService(productsRepo, uploader)
	cartService := service.NewCartService(cartsRepo, productsRepo)
	addressService := service.NewAddressService(addressesRepo)
	orderService := service.NewOrderService(ordersRepo, addressesRepo, service.ShippingPolicy{
		Flat:     cfg.Shipping.Flat,
		FreeOver: cfg.Shipping.FreeOver,
	}, hub, log.Named("orders"))

	if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatal("failed to provision admin account", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging(log.Named("http")))
	e.Use(echoMiddleware.Recover())
	e.Use(middlewarepkg.CORS(cfg.CORSAllowedOrigins))
	e.Use(middlewarepkg.Metrics())

	router.Register(e, cfg, tokens, router.Limiters{
		Auth:     middlewarepkg.AuthRateLimiter(redisClient, cfg.RateLimitAuth, log.Named("ratelimit")),
		Checkout: middlewarepkg.CheckoutRateLimiter(cfg.RateLimitCheckout),
	}, router.Handlers{
		Auth:         handler.NewAuthHandler(authService, cfg.Cookie),
		Users:        handler.NewUserAdminHandler(userService),
		Products:     handler.NewProductsHandler(productsService),
		Cart:         handler.NewCartHandler(cartService),
		Addresses:    handler.NewAddressesHandler(addressService),
		Orders:       handler.NewOrdersHandler(orderService),
		OrderUpdates: handler.NewOrderUpdatesHandler(hub, cfg.CORSAllowedOrigins),
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info("api listening", zap.String("port", cfg.Port))
		serverErr <- e.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
