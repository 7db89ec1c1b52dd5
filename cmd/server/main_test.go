package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func TestZapLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	logger, err := zap.NewProduction()
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	router := gin.New()
	router.Use(zapLoggerMiddleware(logger))
	router.GET("/ping", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
}

func TestRunServerMissingConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	err := runServer(&cobra.Command{}, nil)
	if err == nil {
		t.Fatalf("expected configuration error")
	}

	expectedMessage := "config.uninitialized_server_config: server configuration not prepared; PreRunE must execute before RunE"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadServerConfigRequiresBackendURL(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("jwt_signing_key", "signing-secret")
	viper.Set("upstream_timeout", 10*time.Second)

	_, err := LoadServerConfig()
	if err == nil {
		t.Fatalf("expected error when backend_url is missing")
	}
	expectedMessage := "config.missing_backend_url: backend_url must be provided"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadServerConfigRequiresSigningKey(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("backend_url", "http://localhost:5000")
	viper.Set("upstream_timeout", 10*time.Second)

	_, err := LoadServerConfig()
	if err == nil {
		t.Fatalf("expected error when jwt_signing_key is missing")
	}
	expectedMessage := "config.missing_jwt_signing_key: jwt_signing_key must be provided"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadServerConfigRequiresPositiveTimeout(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("backend_url", "http://localhost:5000")
	viper.Set("jwt_signing_key", "signing-secret")
	viper.Set("upstream_timeout", 0)

	_, err := LoadServerConfig()
	if err == nil {
		t.Fatalf("expected error when upstream_timeout is non-positive")
	}
	expectedMessage := "config.invalid_upstream_timeout: upstream_timeout must be greater than zero"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadServerConfigDefaultsTasksEndpoint(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("backend_url", "http://localhost:5000")
	viper.Set("jwt_signing_key", "signing-secret")
	viper.Set("upstream_timeout", 10*time.Second)

	config, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("expected configuration load to succeed, got %v", err)
	}
	if config.TasksEndpoint == "" {
		t.Fatalf("expected a default tasks endpoint")
	}
}

func TestRunServerSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	restoreServe := withServeHTTPStub(func(server *http.Server) error {
		if server.Handler == nil {
			t.Fatalf("expected handler to be configured")
		}
		return http.ErrServerClosed
	})
	defer restoreServe()

	viper.Set("listen_addr", ":0")
	viper.Set("backend_url", "http://localhost:5000")
	viper.Set("jwt_signing_key", "signing-secret")
	viper.Set("jwt_issuer", "frenqai")
	viper.Set("upstream_timeout", 10*time.Second)
	viper.Set("enable_cors", true)
	viper.Set("cors_allowed_origins", []string{"http://localhost:3000"})

	config, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("expected configuration load to succeed, got %v", err)
	}

	command := &cobra.Command{}
	command.SetContext(context.WithValue(context.Background(), serverConfigContextKey, config))

	if err := runServer(command, nil); err != nil {
		t.Fatalf("expected runServer to succeed, got %v", err)
	}
}

func TestRunServerInvalidCORSOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	restoreServe := withServeHTTPStub(func(server *http.Server) error {
		return http.ErrServerClosed
	})
	defer restoreServe()

	viper.Set("listen_addr", ":0")
	viper.Set("backend_url", "http://localhost:5000")
	viper.Set("jwt_signing_key", "signing-secret")
	viper.Set("upstream_timeout", 10*time.Second)
	viper.Set("enable_cors", true)

	config, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("expected configuration load to succeed, got %v", err)
	}

	command := &cobra.Command{}
	command.SetContext(context.WithValue(context.Background(), serverConfigContextKey, config))

	if err := runServer(command, nil); err == nil {
		t.Fatalf("expected error when CORS is enabled without origins")
	}
}

func TestNewRootCommandHelp(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--help"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected help execution to succeed: %v", err)
	}
}

func withServeHTTPStub(stub func(server *http.Server) error) func() {
	previous := serveHTTP
	serveHTTP = stub
	return func() {
		serveHTTP = previous
	}
}
