// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gateway provides the HTTP service for AleutianSQL.
//
// This package contains the main Service type that coordinates all
// components of the data assistant: HTTP routing, the token-authenticated
// Azure SQL connection, the LLM client, the agent loop, audit sinks, and
// observability infrastructure.
//
// # Enterprise Integration
//
// The gateway supports dependency injection via extensions.ServiceOptions,
// enabling AleutianEnterprise to provide custom implementations of:
//   - AuthProvider: Custom authentication (JWT, API keys)
//   - AuthzProvider: Role-based access control
//   - AuditLogger: Compliance audit logging
//
// # Usage
//
// Open source (uses no-op defaults):
//
//	cfg := gateway.Config{Port: 8080}
//	svc, err := gateway.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
//
// Enterprise (with custom implementations):
//
//	opts := &extensions.ServiceOptions{
//	    AuthProvider: enterpriseAuth,
//	    AuditLogger:  enterpriseAudit,
//	}
//	svc, err := gateway.New(cfg, opts)
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianSQL/pkg/extensions"
	"github.com/AleutianAI/AleutianSQL/services/agent"
	"github.com/AleutianAI/AleutianSQL/services/gateway/audit"
	"github.com/AleutianAI/AleutianSQL/services/gateway/observability"
	"github.com/AleutianAI/AleutianSQL/services/gateway/routes"
	"github.com/AleutianAI/AleutianSQL/services/llm"
	"github.com/AleutianAI/AleutianSQL/services/sqldb"
)

// Version is the gateway build version reported on /version.
const Version = "0.3.0"

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the gateway service.
//
// # Description
//
// Service abstracts the gateway lifecycle, enabling testing and
// alternative implementations. Only essential lifecycle methods are
// exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	//
	// Callers must not modify routes after construction.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds gateway configuration options.
//
// # Description
//
// Config centralizes HTTP and pipeline configuration. Values can be
// populated from environment variables, config files, or
// programmatically for testing. Database and LLM settings come from
// their own packages' environment loaders.
//
// # Required Fields
//
// None - all fields have sensible defaults.
type Config struct {
	// Port is the HTTP server port. Default: 8080
	Port int

	// LLMBackend specifies the LLM provider.
	// Valid values: "azure", "openai"
	// Default: "azure"
	LLMBackend string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// If empty, tracing is disabled.
	// Example: "otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus metrics endpoint.
	// Default: true
	EnableMetrics bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string

	// RecursionLimit bounds agent loop steps per question.
	// Default: agent.DefaultRecursionLimit
	RecursionLimit int

	// AuditLogPath is the path to the local session audit log.
	// Default: "./logs/sessions.log"
	AuditLogPath string

	// StorageConnectionString enables the Azure Table audit sink when
	// set. Empty disables the sink.
	StorageConnectionString string

	// TableName is the Azure Table for session records.
	// Default: "AgentLogs"
	TableName string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Fields
//
//   - config: Service configuration
//   - opts: Extension options for enterprise features
//   - router: Gin HTTP engine
//   - db: Token-authenticated Azure SQL connection
//   - chatClient: LLM provider client
//   - sqlAgent: The control loop answering questions
//   - sinks: Audit sinks receiving completed sessions
//   - tracerCleanup: Function to shutdown tracer on exit
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config        Config
	opts          extensions.ServiceOptions
	router        *gin.Engine
	db            *sqldb.Database
	chatClient    llm.ChatClient
	sqlAgent      *agent.Agent
	sinks         []audit.Sink
	tracerCleanup func(context.Context)
}

// New creates a new gateway Service with the given configuration.
//
// # Description
//
// New initializes all gateway components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing (when an endpoint is set)
//  3. Initializes Prometheus metrics
//  4. Connects to Azure SQL with DefaultAzureCredential tokens
//  5. Creates the LLM client based on backend type
//  6. Snapshots the schema and builds the agent loop
//  7. Opens audit sinks
//  8. Sets up HTTP routes with extension options
//
// If opts is nil, DefaultOptions() is used (no-op implementations).
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//   - opts: Extension options for enterprise features. May be nil.
//
// # Outputs
//
//   - Service: Ready-to-run gateway service
//   - error: Non-nil if initialization fails
//
// # Assumptions
//
//   - Environment variables are set for the database and LLM provider
//   - The executing identity has database access
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}
	// Partial option structs get no-op fills so handlers never nil-check.
	if s.opts.AuthProvider == nil {
		s.opts.AuthProvider = &extensions.NopAuthProvider{}
	}
	if s.opts.AuthzProvider == nil {
		s.opts.AuthzProvider = &extensions.NopAuthzProvider{}
	}
	if s.opts.AuditLogger == nil {
		s.opts.AuditLogger = &extensions.NopAuditLogger{}
	}

	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	// Initialize OpenTelemetry tracer
	if s.config.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	} else {
		slog.Info("OTel endpoint not configured, tracing disabled")
	}

	// Initialize Prometheus metrics
	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for the ask pipeline")
	}

	ctx := context.Background()

	// Connect to Azure SQL
	dbCfg, err := sqldb.LoadConfig()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}
	s.db, err = sqldb.Connect(ctx, dbCfg)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to connect to Azure SQL: %w", err)
	}

	// Initialize LLM client
	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	// Build the agent loop over a fresh schema snapshot
	toolset, err := agent.NewToolset(ctx, s.db, s.chatClient)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to build SQL toolset: %w", err)
	}
	s.sqlAgent = agent.NewAgent(s.chatClient, toolset, s.config.RecursionLimit)

	// Open audit sinks
	if err := s.initAuditSinks(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize audit sinks: %w", err)
	}

	// Setup HTTP router
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
// Cleanup is automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting gateway server", "port", s.config.Port, "version", Version)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "azure"
	}
	if cfg.RecursionLimit == 0 {
		cfg.RecursionLimit = agent.RecursionLimitFromEnv()
	}
	if cfg.AuditLogPath == "" {
		cfg.AuditLogPath = "./logs/sessions.log"
	}
	if cfg.TableName == "" {
		cfg.TableName = audit.DefaultTableName
	}
	cfg.EnableMetrics = true

	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Description
//
// Sets up an OTLP trace exporter sending spans to the configured
// collector.
//
// # Outputs
//
//   - func(context.Context): Cleanup function to call on shutdown
//   - error: Non-nil if tracer setup fails
//
// # Limitations
//
//   - Uses insecure gRPC connection (appropriate for internal networks)
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("sqlagent-gateway")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initLLMClient creates the LLM client for the configured backend.
//
// # Limitations
//
//   - Only supports: azure, openai
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "azure":
		s.chatClient, err = llm.NewAzureOpenAIClientFromEnv()
		slog.Info("Using Azure OpenAI LLM backend")
	case "openai":
		s.chatClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to azure", "backend", s.config.LLMBackend)
		s.chatClient, err = llm.NewAzureOpenAIClientFromEnv()
	}

	return err
}

// initAuditSinks opens the local session log and, when storage is
// configured, the Azure Table sink.
func (s *service) initAuditSinks() error {
	if err := os.MkdirAll(filepath.Dir(s.config.AuditLogPath), 0700); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	sessionLog, err := audit.NewSessionLog(s.config.AuditLogPath)
	if err != nil {
		return err
	}
	s.sinks = append(s.sinks, sessionLog)

	if s.config.StorageConnectionString != "" {
		tableSink, err := audit.NewTableSink(s.config.StorageConnectionString, s.config.TableName)
		if err != nil {
			// Table storage is best-effort; the local log still records
			// every session.
			slog.Warn("Azure Table audit sink unavailable", "error", err)
		} else {
			s.sinks = append(s.sinks, tableSink)
		}
	} else {
		slog.Info("AZURE_STORAGE_CONNECTION_STRING not set, Azure Table audit disabled")
	}

	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("sqlagent-gateway"))

	routes.SetupRoutes(s.router, s.sqlAgent, s.db, s.sinks, Version, s.opts)
}

// cleanup releases all resources held by the service.
//
// Called when Run() exits or on initialization failure.
func (s *service) cleanup() {
	if s.opts.AuditLogger != nil {
		if err := s.opts.AuditLogger.Flush(context.Background()); err != nil {
			slog.Warn("Audit logger flush error", "error", err)
		}
	}

	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			slog.Warn("Audit sink close error", "sink", sink.Name(), "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Warn("Database close error", "error", err)
		}
	}

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
