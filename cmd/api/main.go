package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/njprem/agri_admin_backend/internal/config"
	"github.com/njprem/agri_admin_backend/internal/logging"
	miniorepo "github.com/njprem/agri_admin_backend/internal/repository/minio"
	"github.com/njprem/agri_admin_backend/internal/repository/postgres"
	"github.com/njprem/agri_admin_backend/internal/service"
	transporthttp "github.com/njprem/agri_admin_backend/internal/transport/http"
	"github.com/njprem/agri_admin_backend/internal/transport/mail"
	"github.com/njprem/agri_admin_backend/internal/util"
)

func main() {
	cfg := config.Load()

	logCloser := logging.Setup(cfg.LogstashTCPAddr, "agri-admin-api")
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("postgres schema: %v", err)
	}

	minioClient, err := miniorepo.NewClient(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOUseSSL)
	if err != nil {
		log.Fatalf("minio: %v", err)
	}
	storage := miniorepo.NewStorage(minioClient)
	if err := storage.EnsureBucket(ctx, cfg.ImportBucket); err != nil {
		log.Fatalf("minio bucket %s: %v", cfg.ImportBucket, err)
	}

	users := postgres.NewUserRepo(db)
	roles := postgres.NewRoleRepo(db)
	farmers := postgres.NewFarmerRepo(db)
	employees := postgres.NewEmployeeRepo(db)

	jwt := util.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	authService := service.NewAuthService(users, roles, jwt).WithPasswordPolicy(util.PasswordPolicy{
		MinLength:      cfg.PasswordMinLength,
		RequireClasses: cfg.PasswordRequireClasses,
	})
	roleService := service.NewRoleService(roles, users)
	codeService := service.NewCodeFormatService(postgres.NewCodeFormatRepo(db))
	settingsService, err := service.NewSettingsService(postgres.NewSettingsRepo(db))
	if err != nil {
		log.Fatalf("settings: %v", err)
	}
	if err := settingsService.Refresh(ctx); err != nil {
		log.Printf("settings: using default age bounds: %v", err)
	}

	if cfg.SeedAdminEmail != "" {
		if _, err := authService.BootstrapSuperAdmin(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			log.Fatalf("bootstrap super admin: %v", err)
		}
		log.Printf("auth: super admin %s ready", cfg.SeedAdminEmail)
	}

	importService := service.NewBulkImportService(
		postgres.NewImportJobRepo(db), farmers, employees, codeService, settingsService, storage,
		service.BulkImportServiceConfig{
			Bucket:       cfg.ImportBucket,
			MaxRows:      cfg.ImportMaxRows,
			MaxFileBytes: cfg.ImportMaxBytes,
			SyncRows:     cfg.ImportSyncRows,
			Workers:      cfg.ImportWorkers,
			QueueSize:    cfg.ImportQueueSize,
		},
	)
	if cfg.SMTPHost != "" {
		importService.WithNotifier(mail.NewImportMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, cfg.SMTPSkipTLSVerify))
	}
	exportService := service.NewBulkExportService(farmers, employees, cfg.ExportMaxRows)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	importService.Start(workerCtx)

	e := transporthttp.NewRouter(cfg.AllowOrigins, cfg.ImportMaxBytes)
	transporthttp.RegisterAuth(e, authService, roleService)
	transporthttp.RegisterBulk(e, authService, importService, exportService, cfg.ImportMaxBytes)
	transporthttp.RegisterRBAC(e, authService, roleService)
	transporthttp.RegisterConfig(e, authService, codeService, settingsService)
	transporthttp.RegisterSwagger(e)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	stopWorkers()
	importService.Wait()
}
