package main

import (
	"context"
	crypto_rand "crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mediflow/mediflow/internal/config"
	"github.com/mediflow/mediflow/internal/domain/analytics"
	"github.com/mediflow/mediflow/internal/domain/audit"
	"github.com/mediflow/mediflow/internal/domain/billing"
	"github.com/mediflow/mediflow/internal/domain/clinical"
	"github.com/mediflow/mediflow/internal/domain/identity"
	"github.com/mediflow/mediflow/internal/domain/patient"
	"github.com/mediflow/mediflow/internal/domain/prescription"
	"github.com/mediflow/mediflow/internal/domain/provider"
	"github.com/mediflow/mediflow/internal/domain/scheduling"
	"github.com/mediflow/mediflow/internal/platform/auth"
	"github.com/mediflow/mediflow/internal/platform/crypto"
	"github.com/mediflow/mediflow/internal/platform/db"
	"github.com/mediflow/mediflow/internal/platform/middleware"
	"github.com/mediflow/mediflow/internal/platform/token"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// userCmd bootstraps staff accounts from the command line, which is how the
// first SUPER_ADMIN gets created before the register endpoint is usable.
func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")
			firstName, _ := cmd.Flags().GetString("first-name")
			lastName, _ := cmd.Flags().GetString("last-name")

			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}
			if !auth.ValidRole(role) {
				return fmt.Errorf("role must be one of: %s", strings.Join(auth.AllRoles, ", "))
			}
			if problems := crypto.CheckPasswordStrength(password); len(problems) > 0 {
				return fmt.Errorf("weak password: %s", strings.Join(problems, "; "))
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			hash, err := crypto.HashPassword(password)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			user := &identity.User{
				ID:           uuid.New(),
				Email:        strings.ToLower(strings.TrimSpace(email)),
				PasswordHash: hash,
				Role:         role,
				FirstName:    firstName,
				LastName:     lastName,
				Active:       true,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := identity.NewUserRepoPG(pool).Create(ctx, user); err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			fmt.Printf("Created %s account %s (%s)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}
	createCmd.Flags().String("email", "", "Login email")
	createCmd.Flags().String("password", "", "Initial password")
	createCmd.Flags().String("role", auth.RoleSuperAdmin, "Staff role")
	createCmd.Flags().String("first-name", "", "First name")
	createCmd.Flags().String("last-name", "", "Last name")

	cmd.AddCommand(createCmd)
	return cmd
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Development convenience: an ephemeral signing secret means tokens die
	// with the process. Production requires JWT_SECRET via cfg.Validate.
	secret := cfg.JWTSecret
	if secret == "" {
		raw := make([]byte, 32)
		if _, err := crypto_rand.Read(raw); err != nil {
			logger.Fatal().Err(err).Msg("failed to generate ephemeral signing secret")
		}
		secret = fmt.Sprintf("%x", raw)
		logger.Warn().Msg("JWT_SECRET not set; sessions will not survive a restart")
	}

	tokens, err := token.NewService(secret, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize token service")
	}

	revoked := auth.NewTokenRevocationStore()
	defer revoked.Close()

	// PHI encryption key. Production refuses to start without one (enforced
	// by cfg.Validate); development falls back to an ephemeral key so local
	// data is unreadable after a restart rather than stored in the clear.
	key := cfg.EncryptionKey()
	if key == nil {
		key = make([]byte, 32)
		if _, err := crypto_rand.Read(key); err != nil {
			logger.Fatal().Err(err).Msg("failed to generate ephemeral encryption key")
		}
		logger.Warn().Msg("PHI_ENCRYPTION_KEY not set; using an ephemeral key, encrypted fields will not survive a restart")
	}
	encryptor, err := crypto.NewFieldEncryptor(key)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create field encryptor")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	e.Use(middleware.RateLimit(rateLimitCfg))
	e.Use(middleware.PHIAccessLog(logger))

	e.GET("/health", db.HealthHandler(pool))

	gate := auth.NewGate(tokens, revoked)
	public := e.Group("/api/v1")
	api := e.Group("/api/v1", gate.Middleware())

	// Audit first: it is the denial recorder for every other domain.
	auditSvc := audit.NewService(audit.NewRepoPG(pool), logger)
	audit.NewHandler(auditSvc).RegisterRoutes(api)

	identitySvc := identity.NewService(
		identity.NewUserRepoPG(pool),
		identity.NewSessionRepoPG(pool),
		tokens,
		revoked,
		auditSvc,
		logger,
		cfg.MaxLoginAttempts,
		cfg.LockoutWindow(),
	)
	// Secure cookies whenever the server itself terminates TLS, and always
	// in production regardless of who terminates it.
	identity.NewHandler(identitySvc, cfg.IsProduction() || cfg.TLSEnabled).RegisterRoutes(public, api)

	patientSvc := patient.NewService(patient.NewRepoPG(pool), encryptor, auditSvc, logger)
	patient.NewHandler(patientSvc).RegisterRoutes(api)

	providerSvc := provider.NewService(provider.NewRepoPG(pool))
	provider.NewHandler(providerSvc, auditSvc).RegisterRoutes(api, public)

	schedulingSvc := scheduling.NewService(scheduling.NewRepoPG(pool), patientSvc, auditSvc, logger)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(api, public)

	clinicalSvc := clinical.NewService(
		clinical.NewVitalSignRepoPG(pool),
		clinical.NewAllergyRepoPG(pool),
		clinical.NewMedicationRepoPG(pool),
		auditSvc,
		logger,
	)
	clinical.NewHandler(clinicalSvc).RegisterRoutes(api)

	prescriptionSvc := prescription.NewService(prescription.NewRepoPG(pool), auditSvc, logger)
	prescription.NewHandler(prescriptionSvc).RegisterRoutes(api)

	billingSvc := billing.NewService(billing.NewRepoPG(pool), auditSvc, logger)
	billing.NewHandler(billingSvc).RegisterRoutes(api)

	analyticsSvc := analytics.NewService(analytics.NewRepoPG(pool))
	analytics.NewHandler(analyticsSvc).RegisterRoutes(api)

	// Graceful shutdown on SIGINT/SIGTERM.
	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(timeoutCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
