package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gostorefront/storefront-api/internal/api/handlers"
	"github.com/gostorefront/storefront-api/internal/api/middleware"
	"github.com/gostorefront/storefront-api/internal/cache"
	"github.com/gostorefront/storefront-api/internal/config"
	"github.com/gostorefront/storefront-api/internal/health"
	"github.com/gostorefront/storefront-api/internal/metrics"
	repository "github.com/gostorefront/storefront-api/internal/repositories"
	service "github.com/gostorefront/storefront-api/internal/services"
	"github.com/gostorefront/storefront-api/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {

	// Logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load config
	cfg := config.MustLoad()

	// Tracing setup
	shutdownTracing, err := telemetry.Setup(context.Background(), &cfg.Telemetry)
	if err != nil {
		slog.Error("❌ Error setting up tracing", "error", err.Error())
		os.Exit(1)
	}

	// Database setup
	repos, err := repository.New(cfg)
	if err != nil {
		slog.Error("❌ Error accessing the database", "error", err.Error())
		os.Exit(1)
	}

	defer func() {
		if err := repos.Close(); err != nil {
			slog.Error("⚠️ Error closing database connection", slog.String("error", err.Error()))
		} else {
			slog.Info("✅ Database connection closed")
		}
	}()

	// Redis setup
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisConnect.Addr,
		Username: cfg.RedisConnect.Username,
		Password: cfg.RedisConnect.Password,
		DB:       cfg.RedisConnect.DB,
	})
	productCache := cache.NewRedisCache(redisClient, &cfg.Cache)

	catalogService := service.NewCatalogService(repos.Product, productCache, &cfg.Cache)
	productHandler := handlers.NewProductHandler(catalogService)
	cartService := service.NewCartService(repos.Cart, catalogService)
	cartHandler := handlers.NewCartHandler(cartService)
	orderService := service.NewOrderService(repos.Order, repos.Cart, catalogService)
	orderHandler := handlers.NewOrderHandler(orderService)

	healthHandler, err := health.NewHealthHandler(cfg)
	if err != nil {
		slog.Error("❌ Error setting up health checks", "error", err.Error())
		os.Exit(1)
	}

	slog.Info("storage initialized", slog.String("env", cfg.Env), slog.String("version", "1.0.0"))

	// Setup router
	routerMux := http.NewServeMux()
	routerMux.HandleFunc("POST /api/products", productHandler.CreateProduct())
	routerMux.HandleFunc("GET /api/products", productHandler.ListProducts())
	routerMux.HandleFunc("GET /api/products/{id}", productHandler.GetProduct())
	routerMux.HandleFunc("PUT /api/products/{id}", productHandler.UpdateProduct())
	routerMux.HandleFunc("DELETE /api/products/{id}", productHandler.DeleteProduct())
	routerMux.HandleFunc("POST /api/cart/addtocart", cartHandler.AddToCart())
	routerMux.HandleFunc("GET /api/cart/getcart/{cartId}", cartHandler.GetCart())
	routerMux.HandleFunc("PUT /api/cart/updateitem/{cartId}/{productId}", cartHandler.UpdateItem())
	routerMux.HandleFunc("DELETE /api/cart/removeitem/{cartId}/{productId}", cartHandler.RemoveItem())
	routerMux.HandleFunc("DELETE /api/cart/clearcart/{cartId}", cartHandler.ClearCart())
	routerMux.HandleFunc("POST /api/orders/createorder", orderHandler.CreateOrder())
	routerMux.HandleFunc("GET /api/orders/getallorders", orderHandler.GetAllOrders())
	routerMux.HandleFunc("GET /api/orders/getorder/{id}", orderHandler.GetOrder())
	routerMux.HandleFunc("PUT /api/orders/updateorder/{id}", orderHandler.UpdateOrderStatus())
	routerMux.HandleFunc("DELETE /api/orders/deleteorder/{id}", orderHandler.DeleteOrder())
	routerMux.Handle("GET /metrics", metrics.Handler())
	routerMux.Handle("GET /health", healthHandler.Handler())

	// Middleware chaining; metrics wraps the mux itself so it can resolve
	// the matched route pattern.
	var handler http.Handler = metrics.Middleware(routerMux)
	handler = middleware.Logging(handler)
	handler = otelhttp.NewHandler(handler, "storefront-api")

	// Setup http server
	server := http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	slog.Info("🚀 Server is starting...", slog.String("address", cfg.Addr))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("❌ Failed to start server", slog.Any("error", err.Error()))
		}
	}()

	<-done

	slog.Warn("🛑 Shutdown signal received. Preparing to stop the server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("⚠️ Server shutdown encountered an issue", slog.String("error", err.Error()))
	} else {
		slog.Info("✅ Server shut down gracefully. All connections closed.")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("⚠️ Tracer shutdown encountered an issue", slog.String("error", err.Error()))
	}

	if err := redisClient.Close(); err != nil {
		slog.Error("⚠️ Error closing redis connection", slog.String("error", err.Error()))
	}

}
