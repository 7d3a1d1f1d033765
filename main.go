package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/tesseract-hub/commerce-service/internal/background"
	"github.com/tesseract-hub/commerce-service/internal/clients"
	"github.com/tesseract-hub/commerce-service/internal/config"
	"github.com/tesseract-hub/commerce-service/internal/handlers"
	"github.com/tesseract-hub/commerce-service/internal/metrics"
	"github.com/tesseract-hub/commerce-service/internal/middleware"
	"github.com/tesseract-hub/commerce-service/internal/models"
	natsClient "github.com/tesseract-hub/commerce-service/internal/nats"
	"github.com/tesseract-hub/commerce-service/internal/redis"
	"github.com/tesseract-hub/commerce-service/internal/repository"
	"github.com/tesseract-hub/commerce-service/internal/services"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Load .env if present (development convenience)
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	cfg := config.New()
	setupLogging(cfg.App)

	// Initialize database connection
	db, err := initDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Auto-migrate models
	if err := autoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Seed default subscription plans on first boot
	planRepo := repository.NewPlanRepository(db)
	if err := seedDefaultPlans(db, planRepo); err != nil {
		log.Printf("Warning: Failed to seed default plans: %v", err)
	}

	// Initialize Redis connection (optional; usage snapshots go uncached
	// without it, quota enforcement is unaffected)
	var redisClient *redis.Client
	redisClient, err = redis.NewClient(&redis.Config{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
		log.Println("Usage snapshots will be computed on every request (no caching)")
		redisClient = nil
	}

	// Initialize NATS connection for event publishing (optional)
	var nc *natsClient.Client
	nc, err = natsClient.NewClient(&natsClient.Config{URL: cfg.NATS.URL})
	if err != nil {
		log.Printf("Warning: Failed to connect to NATS: %v", err)
		log.Println("Event publishing will be disabled")
		nc = nil
	} else {
		defer nc.Close()
	}

	var notifier services.Notifier = services.NewNoopNotifier()
	if nc != nil {
		notifier = services.NewNATSNotifier(nc)
	}
	var snapshotCache services.SnapshotCache
	if redisClient != nil {
		snapshotCache = redisClient
	}

	// Initialize metrics
	metricsCollector := metrics.New(metrics.Config{
		Namespace: "tesseract",
		Subsystem: "commerce",
	})

	// Initialize repositories
	tenantRepo := repository.NewTenantRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	contentRepo := repository.NewContentRepository(db)
	txManager := repository.NewTxManager(db)

	// Initialize payment providers. Cash-on-delivery is always available;
	// gateway providers register only when credentials are configured.
	providers := []services.PaymentProvider{services.NewCashOnDeliveryProvider()}
	if cfg.Payment.PesapalConsumerKey != "" {
		pesapal := clients.NewPesapalClient(cfg.Payment.PesapalBaseURL, cfg.Payment.PesapalConsumerKey, cfg.Payment.PesapalConsumerSecret)
		providers = append(providers, services.NewPesapalProvider(pesapal, cfg.Payment.PesapalCallbackURL))
		log.Println("Payment provider registered: pesapal")
	}
	if cfg.Payment.PayPalClientID != "" {
		paypal := clients.NewPayPalClient(cfg.Payment.PayPalBaseURL, cfg.Payment.PayPalClientID, cfg.Payment.PayPalClientSecret)
		providers = append(providers, services.NewPayPalProvider(paypal, cfg.Payment.PayPalCurrency))
		log.Println("Payment provider registered: paypal")
	}
	paymentSvc := services.NewPaymentService(providers...)

	// Initialize services
	quotaSvc := services.NewQuotaService(tenantRepo, snapshotCache, notifier)
	stockSvc := services.NewStockService(productRepo, orderRepo)
	orderSvc := services.NewOrderService(orderRepo, stockSvc, paymentSvc, notifier, txManager)
	checkoutSvc := services.NewCheckoutService(
		quotaSvc,
		stockSvc,
		orderRepo,
		productRepo,
		paymentSvc,
		notifier,
		txManager,
		cfg.Checkout.MaxConflictRetries,
	)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, nc, redisPinger(redisClient))
	productHandler := handlers.NewProductHandler(productRepo, quotaSvc, stockSvc, txManager, metricsCollector)
	orderHandler := handlers.NewOrderHandler(checkoutSvc, orderSvc, orderRepo, metricsCollector)
	planHandler := handlers.NewPlanHandler(planRepo, tenantRepo, quotaSvc)
	contentHandler := handlers.NewContentHandler(contentRepo, quotaSvc, txManager)

	// Start background jobs: reservation expiry sweep and stock audit
	bgRunner := background.NewRunner(orderRepo, orderSvc, stockSvc, productRepo, cfg.Checkout, metricsCollector)
	if err := bgRunner.Start(); err != nil {
		log.Fatalf("Failed to start background jobs: %v", err)
	}

	// Setup router
	router := setupRouter(
		healthHandler,
		productHandler,
		orderHandler,
		planHandler,
		contentHandler,
		metricsCollector,
	)

	// Setup server
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting commerce-service on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Stop background jobs first so no sweep runs mid-shutdown
	bgRunner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis connection: %v", err)
		}
	}

	log.Println("Server exited")
}

// redisPinger avoids wrapping a typed nil pointer in a non-nil interface
func redisPinger(c *redis.Client) handlers.RedisPinger {
	if c == nil {
		return nil
	}
	return c
}

func setupLogging(app config.AppConfig) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(app.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func setupRouter(
	healthHandler *handlers.HealthHandler,
	productHandler *handlers.ProductHandler,
	orderHandler *handlers.OrderHandler,
	planHandler *handlers.PlanHandler,
	contentHandler *handlers.ContentHandler,
	metricsCollector *metrics.Metrics,
) *gin.Engine {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{
		"http://localhost:3000",
		"http://localhost:4200",
		"https://admin.tesserix.app",
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "X-Tenant-ID", "X-Tenant-Slug"}
	corsConfig.AllowCredentials = true

	// Global middleware
	router.Use(cors.New(corsConfig))
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger())
	router.Use(metricsCollector.Middleware())
	router.Use(middleware.TenantExtraction())

	// Metrics endpoint (Prometheus scraping)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health endpoints
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")

	// Plans are platform-scoped; usage and assignment are tenant-scoped
	plans := v1.Group("/plans")
	{
		plans.GET("", planHandler.ListPlans)
		plans.POST("", planHandler.CreatePlan)
		plans.GET("/:id", planHandler.GetPlan)
	}

	tenantScoped := v1.Group("")
	tenantScoped.Use(middleware.RequireTenantUUID())
	{
		tenantScoped.POST("/tenant/plan", planHandler.AssignPlan)
		tenantScoped.GET("/tenant/usage", planHandler.GetUsage)

		products := tenantScoped.Group("/products")
		{
			products.POST("", productHandler.CreateProduct)
			products.GET("", productHandler.ListProducts)
			products.GET("/:id", productHandler.GetProduct)
			products.PUT("/:id", productHandler.UpdateProduct)
			products.DELETE("/:id", productHandler.DeleteProduct)
			products.PUT("/:id/stock", productHandler.UpdateProductStock)
			products.POST("/:id/variants", productHandler.CreateVariant)
			products.PUT("/:id/variants/:variantId/stock", productHandler.UpdateVariantStock)
			products.DELETE("/:id/variants/:variantId", productHandler.DeleteVariant)
		}

		orders := tenantScoped.Group("/orders")
		{
			orders.POST("/checkout", orderHandler.Checkout)
			orders.GET("", orderHandler.ListOrders)
			orders.GET("/:id", orderHandler.GetOrder)
			orders.PUT("/:id/status", orderHandler.UpdateStatus)
			orders.POST("/:id/cancel", orderHandler.CancelOrder)
			orders.PUT("/:id/payment-status", orderHandler.UpdatePaymentStatus)
			orders.POST("/:id/refund", orderHandler.RefundOrder)
			orders.POST("/:id/refund/retry", orderHandler.RetryRefund)
		}

		pages := tenantScoped.Group("/pages")
		{
			pages.POST("", contentHandler.CreatePage)
			pages.GET("", contentHandler.ListPages)
			pages.DELETE("/:id", contentHandler.DeletePage)
		}

		blogs := tenantScoped.Group("/blogs")
		{
			blogs.POST("", contentHandler.CreateBlogPost)
			blogs.GET("", contentHandler.ListBlogPosts)
			blogs.DELETE("/:id", contentHandler.DeleteBlogPost)
		}

		staff := tenantScoped.Group("/staff")
		{
			staff.POST("", contentHandler.CreateStaff)
			staff.GET("", contentHandler.ListStaff)
			staff.DELETE("/:id", contentHandler.DeleteStaff)
		}
	}

	return router
}

func initDatabase(dbCfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dbCfg.Host, dbCfg.Port, dbCfg.User, dbCfg.Password, dbCfg.Name, dbCfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Println("Connected to database successfully")
	return db, nil
}

func autoMigrate(db *gorm.DB) error {
	// Enable UUID extension
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return db.AutoMigrate(
		&models.Plan{},
		&models.Tenant{},
		&models.Product{},
		&models.Variant{},
		&models.Order{},
		&models.OrderItem{},
		&models.Coupon{},
		&models.Page{},
		&models.BlogPost{},
		&models.StaffMember{},
		&models.Customer{},
	)
}

// seedDefaultPlans creates the standard plan tiers when the plans table is
// empty, so a fresh deployment is usable without manual setup
func seedDefaultPlans(db *gorm.DB, repo *repository.PlanRepository) error {
	var count int64
	if err := db.Model(&models.Plan{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	type tier struct {
		name       string
		priceCents int64
		limits     models.PlanLimits
	}
	tiers := []tier{
		{
			name:       "Free",
			priceCents: 0,
			limits: models.PlanLimits{
				Products:  models.Bounded(10),
				Orders:    models.Bounded(50),
				Pages:     models.Bounded(3),
				Blogs:     models.Bounded(5),
				Staff:     models.Bounded(2),
				Customers: models.Bounded(100),
				StorageMB: models.Bounded(500),
			},
		},
		{
			name:       "Starter",
			priceCents: 2900,
			limits: models.PlanLimits{
				Products:  models.Bounded(100),
				Orders:    models.Bounded(1000),
				Pages:     models.Bounded(20),
				Blogs:     models.Bounded(50),
				Staff:     models.Bounded(5),
				Customers: models.Bounded(5000),
				StorageMB: models.Bounded(5120),
			},
		},
		{
			name:       "Pro",
			priceCents: 9900,
			limits: models.PlanLimits{
				Products:  models.Bounded(1000),
				Orders:    models.Bounded(20000),
				Pages:     models.Bounded(100),
				Blogs:     models.Bounded(500),
				Staff:     models.Bounded(25),
				Customers: models.Bounded(100000),
				StorageMB: models.Bounded(51200),
			},
		},
		{
			name:       "Enterprise",
			priceCents: 49900,
			// All limits unlimited
			limits: models.PlanLimits{},
		},
	}

	ctx := context.Background()
	for _, t := range tiers {
		plan := &models.Plan{
			Name:       t.name,
			PriceCents: t.priceCents,
			Currency:   "USD",
			IsActive:   true,
		}
		if err := plan.SetLimits(t.limits); err != nil {
			return err
		}
		if err := repo.Create(ctx, plan); err != nil {
			return err
		}
		log.Printf("Seeded plan: %s", t.name)
	}
	return nil
}
