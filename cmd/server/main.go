package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/frenqai/skyline/internal/gtasks"
	"github.com/frenqai/skyline/internal/identity"
	"github.com/frenqai/skyline/internal/metrics"
	"github.com/frenqai/skyline/internal/relay"
	"github.com/frenqai/skyline/internal/sessionauth"
	"github.com/frenqai/skyline/internal/web"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "skyline",
		Short:   "Dashboard proxy for Google Tasks with Gmail, Calendar, Auth, and AI relays",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("backend_url", "", "Base URL of the identity backend")
	rootCmd.Flags().String("jwt_signing_key", "", "HS256 signing secret shared with the identity backend")
	rootCmd.Flags().String("jwt_issuer", "", "Expected JWT issuer; empty disables the issuer check")
	rootCmd.Flags().String("ai_webhook_url", "", "AI assistant webhook URL; empty disables the AI route")
	rootCmd.Flags().String("tasks_endpoint", gtasks.DefaultEndpoint, "Google Tasks API endpoint")
	rootCmd.Flags().Duration("upstream_timeout", 10*time.Second, "Timeout for backend and Google API calls")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin dashboard clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")

	_ = viper.BindPFlag("listen_addr", rootCmd.Flags().Lookup("listen_addr"))
	_ = viper.BindPFlag("backend_url", rootCmd.Flags().Lookup("backend_url"))
	_ = viper.BindPFlag("jwt_signing_key", rootCmd.Flags().Lookup("jwt_signing_key"))
	_ = viper.BindPFlag("jwt_issuer", rootCmd.Flags().Lookup("jwt_issuer"))
	_ = viper.BindPFlag("ai_webhook_url", rootCmd.Flags().Lookup("ai_webhook_url"))
	_ = viper.BindPFlag("tasks_endpoint", rootCmd.Flags().Lookup("tasks_endpoint"))
	_ = viper.BindPFlag("upstream_timeout", rootCmd.Flags().Lookup("upstream_timeout"))
	_ = viper.BindPFlag("enable_cors", rootCmd.Flags().Lookup("enable_cors"))
	_ = viper.BindPFlag("cors_allowed_origins", rootCmd.Flags().Lookup("cors_allowed_origins"))

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	configCodeMissingBackendURL       = "config.missing_backend_url"
	configCodeMissingJWTSigningKey    = "config.missing_jwt_signing_key"
	configCodeInvalidUpstreamTimeout  = "config.invalid_upstream_timeout"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

// ServerConfig is the validated runtime configuration.
type ServerConfig struct {
	ListenAddr         string
	BackendURL         string
	JWTSigningKey      []byte
	JWTIssuer          string
	AIWebhookURL       string
	TasksEndpoint      string
	UpstreamTimeout    time.Duration
	EnableCORS         bool
	CORSAllowedOrigins []string
}

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func LoadServerConfig() (ServerConfig, error) {
	backendURL := viper.GetString("backend_url")
	if backendURL == "" {
		return ServerConfig{}, configError(configCodeMissingBackendURL, "backend_url must be provided")
	}

	jwtSigningKey := viper.GetString("jwt_signing_key")
	if jwtSigningKey == "" {
		return ServerConfig{}, configError(configCodeMissingJWTSigningKey, "jwt_signing_key must be provided")
	}

	upstreamTimeout := viper.GetDuration("upstream_timeout")
	if upstreamTimeout <= 0 {
		return ServerConfig{}, configError(configCodeInvalidUpstreamTimeout, "upstream_timeout must be greater than zero")
	}

	tasksEndpoint := viper.GetString("tasks_endpoint")
	if tasksEndpoint == "" {
		tasksEndpoint = gtasks.DefaultEndpoint
	}

	return ServerConfig{
		ListenAddr:         viper.GetString("listen_addr"),
		BackendURL:         backendURL,
		JWTSigningKey:      []byte(jwtSigningKey),
		JWTIssuer:          viper.GetString("jwt_issuer"),
		AIWebhookURL:       viper.GetString("ai_webhook_url"),
		TasksEndpoint:      tasksEndpoint,
		UpstreamTimeout:    upstreamTimeout,
		EnableCORS:         viper.GetBool("enable_cors"),
		CORSAllowedOrigins: viper.GetStringSlice("cors_allowed_origins"),
	}, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(ServerConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if serverConfig.EnableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, serverConfig.CORSAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	upstreamClient := &http.Client{Timeout: serverConfig.UpstreamTimeout}

	backendClient, backendErr := identity.NewClient(identity.Config{
		BaseURL:    serverConfig.BackendURL,
		HTTPClient: upstreamClient,
		Logger:     logger,
	})
	if backendErr != nil {
		return backendErr
	}

	verifier, verifierErr := sessionauth.New(sessionauth.Config{
		SigningKey: serverConfig.JWTSigningKey,
		Issuer:     serverConfig.JWTIssuer,
		Clock:      sessionauth.NewSystemClock(),
	})
	if verifierErr != nil {
		return verifierErr
	}

	gateway := gtasks.NewGateway(gtasks.Config{
		Endpoint:   serverConfig.TasksEndpoint,
		HTTPClient: upstreamClient,
	})

	recorder := metrics.NewPrometheusRecorder()
	router.GET("/metrics", gin.WrapH(recorder.Handler()))

	healthChecker := web.NewHealthChecker()
	healthChecker.MountHealthRoutes(router)

	gtasks.MountTaskRoutes(router, verifier, backendClient, gateway, logger, recorder)
	relay.MountRelayRoutes(router, relay.Config{
		Backend:      backendClient,
		AIWebhookURL: serverConfig.AIWebhookURL,
		HTTPClient:   upstreamClient,
		Logger:       logger,
		Recorder:     recorder,
	})

	server := &http.Server{
		Addr:              serverConfig.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		healthChecker.SetReady(false)
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", serverConfig.ListenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
