package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/modkit/modnotes/internal/auth"
	"github.com/modkit/modnotes/internal/config"
	"github.com/modkit/modnotes/internal/database"
	"github.com/modkit/modnotes/internal/logging"
	"github.com/modkit/modnotes/internal/moderators"
	"github.com/modkit/modnotes/internal/removalreasons"
	"github.com/modkit/modnotes/internal/server"
	"github.com/modkit/modnotes/internal/usernotes"
	"github.com/modkit/modnotes/internal/wikistore"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "modnotes-api",
		Short: "Moderator notes and removal reasons backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	registerCmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Create a moderator account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := cmd.Flags().GetString("password")
			if err != nil {
				return err
			}
			displayName, err := cmd.Flags().GetString("display-name")
			if err != nil {
				return err
			}
			return registerModerator(cmd.Context(), args[0], password, displayName)
		},
	}
	registerCmd.Flags().String("password", "", "Password for the new account")
	registerCmd.Flags().String("display-name", "", "Display name for the new account")
	rootCmd.AddCommand(registerCmd)

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("session-cookie-name", defaults.GetString("session.cookie_name"), "Session cookie name")
	cmd.PersistentFlags().Int("session-ttl-minutes", defaults.GetInt("session.ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "session.cookie_name", "session-cookie-name")
	bindFlag(cmd, "session.ttl_minutes", "session-ttl-minutes")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func registerModerator(ctx context.Context, name, password, displayName string) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	service, err := moderators.NewService(moderators.ServiceConfig{Database: db})
	if err != nil {
		return err
	}
	identity, err := service.Register(ctx, name, password, displayName)
	if err != nil {
		return err
	}
	logger.Info("moderator registered", zap.String("name", identity.Name))
	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	wikiStore, err := wikistore.NewStore(wikistore.StoreConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	moderatorService, err := moderators.NewService(moderators.ServiceConfig{Database: db})
	if err != nil {
		return err
	}

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		Issuer:        "modnotes-auth",
		Audience:      "modnotes-api",
		TokenTTL:      appConfig.SessionTTL,
	})
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		Issuer:        "modnotes-auth",
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		return err
	}

	notesStore, err := usernotes.NewStore(usernotes.StoreConfig{
		Transport: wikiStore,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	reasonsResolver, err := removalreasons.NewResolver(removalreasons.ResolverConfig{
		Transport: wikiStore,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	// Removal execution needs a moderation client for the upstream site;
	// without one configured the removals endpoint reports the feature
	// disabled.
	logger.Info("removal pipeline not configured, removals endpoint disabled")

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Moderators:   moderatorService,
		TokenManager: tokenManager,
		Notes:        notesStore,
		Reasons:      reasonsResolver,
		Sessions:     sessionValidator,
		Realtime:     server.NewRealtimeDispatcher(),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
