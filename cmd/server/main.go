package main

import (
	"alcyxob/gym-app/internal/api"
	"alcyxob/gym-app/internal/config"
	"alcyxob/gym-app/internal/gateway"
	"alcyxob/gym-app/internal/jobs"
	"alcyxob/gym-app/internal/lock"
	"alcyxob/gym-app/internal/notify"
	"alcyxob/gym-app/internal/repository"
	"alcyxob/gym-app/internal/repository/memory"
	"alcyxob/gym-app/internal/repository/mongo"
	"alcyxob/gym-app/internal/service"
	"alcyxob/gym-app/internal/storage"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

// @title Gym Membership & Booking API
// @version 1.0
// @description Membership packages, gateway payments, and trainer session booking.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	log.Println("Starting Gym App Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	loc, _ := cfg.App.Location() // Validated by LoadConfig
	log.Printf("Configuration loaded (env=%s, timezone=%s).", cfg.App.Env, loc)

	// --- Repositories ---
	var store *repository.Store
	var lockBackend lock.Backend
	switch cfg.Database.Driver {
	case "memory":
		log.Println("WARN: Using in-memory repositories; data is lost on restart")
		store = memory.NewStore()
	default:
		dbClient, err := mongo.ConnectDB(cfg.Database.URI)
		if err != nil {
			log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
		}
		defer func() {
			log.Println("Disconnecting MongoDB...")
			if err := mongo.DisconnectDB(dbClient); err != nil {
				log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
			}
		}()
		appDB := dbClient.Database(cfg.Database.Name)
		log.Println("Database connection established.")

		log.Println("Ensuring database indexes...")
		go func() { // Run index creation in background
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
			defer cancel()
			mongo.EnsureIndexes(ctx, appDB)
			lock.EnsureLockIndexes(ctx, appDB)
			log.Println("Index creation process completed.")
		}()

		store = mongo.NewStore(appDB)
		if cfg.Lock.Driver == "mongo" {
			lockBackend = lock.NewMongoBackend(appDB)
		}
	}

	// --- Booking Lock ---
	switch cfg.Lock.Driver {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err := lock.NewRedisClient(ctx, cfg.Lock.RedisAddr, cfg.Lock.RedisPassword, cfg.Lock.RedisDB)
		cancel()
		if err != nil {
			log.Fatalf("FATAL: Could not connect to Redis: %v", err)
		}
		defer redisClient.Close()
		lockBackend = lock.NewRedisBackend(redisClient)
	case "memory":
		lockBackend = lock.NewMemoryBackend()
	}
	if lockBackend == nil {
		log.Fatalf("FATAL: lock.driver %q needs database.driver mongo", cfg.Lock.Driver)
	}
	locker := lock.NewLocker(lockBackend, cfg.Booking.LockTTL, cfg.Booking.LockWait)
	log.Printf("Booking lock backend: %s", cfg.Lock.Driver)

	// --- Notification Archive ---
	var archive storage.FileStorage
	switch {
	case cfg.S3.BucketName != "":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		archive, err = storage.NewS3Storage(ctx, cfg.S3)
		cancel()
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize S3 storage: %v", err)
		}
	case cfg.Database.Driver == "memory":
		archive = storage.NewMemoryStorage()
	default:
		log.Println("WARN: s3.bucket_name is empty; raw payment notifications will not be archived")
	}

	// --- Payment Gateway ---
	gatewayClient := gateway.NewClient(gateway.Config{
		PartnerCode: cfg.Payment.PartnerCode,
		AccessKey:   cfg.Payment.AccessKey,
		SecretKey:   cfg.Payment.SecretKey,
		Endpoint:    cfg.Payment.Endpoint,
		RedirectURL: cfg.Payment.RedirectURL,
		IPNURL:      cfg.Payment.IPNURL,
		RequestType: cfg.Payment.RequestType,
		Timeout:     cfg.Payment.RequestTimeout,
	})
	allowUnsigned := !cfg.App.IsProduction() && cfg.Payment.SkipSignatureVerification
	if allowUnsigned {
		log.Println("WARN: Payment signature verification is DISABLED (development only)")
	}

	// --- Services ---
	log.Println("Initializing services...")
	clock := service.SystemClock{}
	notifier := notify.LogNotifier{}

	ledger := service.NewSessionLedger(store.Memberships, clock, loc)
	availability := service.NewAvailabilityChecker(store.Trainers, store.Appointments, loc)

	authService := service.NewAuthService(store.Users, store.Trainers, cfg.JWT.Secret, cfg.JWT.Expiration)
	trainerService := service.NewTrainerService(store.Trainers)
	packageService := service.NewPackageService(store.Packages)
	membershipService := service.NewMembershipService(store.Memberships, ledger, notifier, clock)
	appointmentService := service.NewAppointmentService(store.Appointments, store.Trainers, availability, ledger, locker, notifier, clock, loc)
	paymentService := service.NewPaymentService(
		store.Payments, store.PaymentEvents, store.Memberships, store.Packages, store.Users,
		gatewayClient, archive, notifier, clock,
		service.PaymentOptions{AllowUnsigned: allowUnsigned, ActivationGrace: cfg.Payment.ActivationGrace},
	)

	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := authService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			log.Fatalf("FATAL: Could not seed admin account: %v", err)
		}
		cancel()
	}

	// --- Scheduled Jobs ---
	var sweep *jobs.ExpirySweep
	if cfg.Jobs.ExpirySchedule != "" {
		sweep, err = jobs.NewExpirySweep(cfg.Jobs.ExpirySchedule, loc, membershipService)
		if err != nil {
			log.Fatalf("FATAL: Invalid jobs.expiry_schedule %q: %v", cfg.Jobs.ExpirySchedule, err)
		}
		sweep.Start()
		log.Printf("Membership expiry sweep scheduled: %s", cfg.Jobs.ExpirySchedule)
	}

	// --- Initialize Gin Engine ---
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default() // Includes Logger and Recovery middleware

	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.JWT.Secret, authService, trainerService, packageService, appointmentService, membershipService, paymentService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Payment.RequestTimeout + 10*time.Second, // Payment creation waits on the gateway
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if sweep != nil {
		sweep.Stop(ctxShutdown)
	}
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Printf("ERROR: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
