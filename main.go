package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"trading_backend/config"
	"trading_backend/models"
	"trading_backend/routes"
	"trading_backend/scheduler"
	"trading_backend/services/alerts"
	"trading_backend/services/auth"
	"trading_backend/services/marketdata"
	"trading_backend/services/news"
	"trading_backend/services/notify"
	"trading_backend/services/orders"
	"trading_backend/services/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// dbInitialized tracks whether database has been successfully initialized,
// so the /ready endpoint can report the real state while the background
// initialization is still running
var dbInitialized bool
var dbInitMutex sync.RWMutex

func main() {
	log.Println("==============================================")
	log.Println("  Trading Backend API - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Health endpoints go up first so the orchestrator sees us listening
	setupHealthEndpoints(router)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Initialize database, services and routes in background
	var jobs *scheduler.Jobs
	var hub *notify.Hub
	var archive *news.Archive
	go func() {
		db, err := config.InitDB()
		if err != nil {
			log.Printf("ERROR: Database connection failed: %v", err)
			log.Println("Service will continue in limited mode (health check only)")
			return
		}

		log.Println("Running database migrations...")
		if err := runMigrations(); err != nil {
			log.Printf("ERROR: Migration failed: %v", err)
		} else {
			log.Println("Database migrations completed successfully")
		}

		// Explicit construction: every collaborator is built once here and
		// handed to the components that need it.
		st := store.NewStore(db)

		market := marketdata.NewClient(marketdata.ClientConfig{
			BaseURL: cfg.StockAPIBaseURL,
			APIKey:  cfg.StockAPIKey,
		})

		hub = notify.NewHub()

		policy := orders.NewLimitPricePolicy(decimal.Zero)
		lifecycle := orders.NewLifecycle(st, market, policy, hub, cfg.MaxReconcileAttempts)
		evaluator := alerts.NewEvaluator(st, market, hub)

		archive, err = news.InitArchive(cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			log.Printf("Warning: news archive unavailable: %v", err)
			archive = nil
		}

		jwtService := auth.NewJWTService(cfg.JWTSecret, auth.DefaultTokenTTL)

		dbInitMutex.Lock()
		dbInitialized = true
		dbInitMutex.Unlock()

		routes.SetupRoutes(router, routes.Deps{
			DB:         db,
			Store:      st,
			Lifecycle:  lifecycle,
			JWTService: jwtService,
			Market:     market,
			Archive:    archive,
			Hub:        hub,
		})

		// Start background jobs
		jobs = scheduler.NewJobs(cfg, lifecycle, evaluator, market, archive)
		if err := jobs.Start(); err != nil {
			log.Printf("ERROR: Failed to start scheduler: %v", err)
		}

		log.Println("Application fully initialized with database")
	}()

	gracefulShutdown(server, func() {
		if jobs != nil {
			jobs.Stop()
		}
		if hub != nil {
			hub.Shutdown()
		}
		if archive != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			archive.Close(ctx)
		}
	})
}

// runMigrations runs all database migrations
func runMigrations() error {
	db := config.DB

	if err := models.MigrateUserModels(db); err != nil {
		return err
	}
	if err := models.MigrateOrderModels(db); err != nil {
		return err
	}
	if err := models.MigrateAlertModels(db); err != nil {
		return err
	}
	return nil
}

// setupHealthEndpoints registers liveness and readiness probes
func setupHealthEndpoints(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ready", func(c *gin.Context) {
		dbInitMutex.RLock()
		ready := dbInitialized
		dbInitMutex.RUnlock()

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "initializing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
}

// corsMiddleware allows cross-origin requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger logs each request with latency
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// Skip noisy probe endpoints
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/ready" {
			return
		}

		log.Printf("%s %s %d %v", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

// gracefulShutdown waits for a termination signal and drains the server
func gracefulShutdown(server *http.Server, stopServices func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	stopServices()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
