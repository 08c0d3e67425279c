// Copyright 2025 The AP Engine Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command apengined is the long-running daemon: it serves the outward
// OGC API - Processes HTTP surface and owns the Dispatcher's worker
// pool that actually executes jobs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	vaultapi "github.com/hashicorp/vault/api"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/weaver-engine/ap-engine/internal/apengine"
	"github.com/weaver-engine/ap-engine/internal/config"
	"github.com/weaver-engine/ap-engine/internal/datasource"
	"github.com/weaver-engine/ap-engine/internal/dispatch"
	"github.com/weaver-engine/ap-engine/internal/fetch"
	"github.com/weaver-engine/ap-engine/internal/httpapi"
	"github.com/weaver-engine/ap-engine/internal/job"
	internallog "github.com/weaver-engine/ap-engine/internal/log"
	"github.com/weaver-engine/ap-engine/internal/model"
	"github.com/weaver-engine/ap-engine/internal/notify"
	"github.com/weaver-engine/ap-engine/internal/observability"
	"github.com/weaver-engine/ap-engine/internal/remoteexec"
	"github.com/weaver-engine/ap-engine/internal/secrets"
	"github.com/weaver-engine/ap-engine/internal/store"
	"github.com/weaver-engine/ap-engine/internal/store/memory"
	"github.com/weaver-engine/ap-engine/internal/store/sqldriver"
	"github.com/weaver-engine/ap-engine/internal/tracing"
	"github.com/weaver-engine/ap-engine/internal/workflow"
)

// Version information, injected via ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("apengined %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "apengined: load config: %v\n", err)
		os.Exit(1)
	}

	masker := secrets.NewMasker()
	logger := internallog.NewRedacted(&internallog.Config{
		Level:  cfg.Log.Level,
		Format: internallog.Format(cfg.Log.Format),
		Output: os.Stderr,
	}, masker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		ServiceName:    "apengine",
		ServiceVersion: version,
		Exporter:       tracing.Exporter(cfg.Tracing.Exporter),
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
	})
	if err != nil {
		logger.Error("failed to build tracing provider", internallog.Error(err))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing provider shutdown failed", internallog.Error(err))
		}
	}()

	st, closeStore, err := buildStore(ctx, cfg.Backend)
	if err != nil {
		logger.Error("failed to build store", internallog.Error(err))
		os.Exit(1)
	}
	defer closeStore()

	secretsReg := buildSecretsRegistry(cfg.Secrets)
	secretsCache := secrets.NewCache(secretsReg)

	fetcher, err := buildFetcher(ctx, cfg, secrets.NewCacheResolver(secretsCache), logger)
	if err != nil {
		logger.Error("failed to build reference fetcher", internallog.Error(err))
		os.Exit(1)
	}

	dataSourceMapping, err := buildDataSourceMapping(cfg.DataSourceMappingFile)
	if err != nil {
		logger.Error("failed to load data-source mapping", internallog.Error(err))
		os.Exit(1)
	}

	runtime, err := apengine.NewDockerRuntime(cfg.DockerHost)
	if err != nil {
		logger.Error("failed to connect to container runtime", internallog.Error(err))
		os.Exit(1)
	}
	local := apengine.New(runtime, fetcher, cfg.StagingRoot)

	httpClient := &http.Client{Timeout: 60 * time.Second}
	registry := remoteexec.NewRegistry(map[remoteexec.Protocol]remoteexec.Executor{
		remoteexec.ProtocolWPS1:    remoteexec.NewWPSExecutor(httpClient, "1.0.0"),
		remoteexec.ProtocolWPS2:    remoteexec.NewWPSExecutor(httpClient, "2.0.0"),
		remoteexec.ProtocolESGFCWT: remoteexec.NewESGFCWTExecutor(httpClient),
		remoteexec.ProtocolREST:    remoteexec.NewRESTExecutor(httpClient),
	})

	wf := workflow.New(local, registry, dataSourceMapping, cfg.Dispatch.MaxParallel)

	machine := job.New(st, logger)
	logs := observability.NewMemoryLogStore()

	var notifier *notify.Notifier
	if cfg.SMTP.Host != "" {
		smtpUser, err := resolveOptionalSecret(ctx, secretsReg, masker, cfg.SMTP.Username)
		if err != nil {
			logger.Error("failed to resolve smtp.username", internallog.Error(err))
			os.Exit(1)
		}
		smtpPass, err := resolveOptionalSecret(ctx, secretsReg, masker, cfg.SMTP.Password)
		if err != nil {
			logger.Error("failed to resolve smtp.password", internallog.Error(err))
			os.Exit(1)
		}
		notifier = notify.New(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: smtpUser,
			Password: smtpPass,
			From:     cfg.SMTP.From,
		}, notify.NewPlainRenderer())
	}

	disp := dispatch.New(machine, st, local, wf, logs, notifier, dispatch.Config{
		MaxParallel: cfg.Dispatch.MaxParallel,
		MaxQueued:   cfg.Dispatch.MaxQueued,
		SyncTimeout: cfg.Dispatch.SyncTimeout,
	}, logger).WithSecretsCache(secretsCache)

	router := httpapi.NewRouter(httpapi.Config{
		Title:       "AP Engine",
		Description: "OGC API - Processes Application Package execution engine",
		Version:     version,
	}, st, disp, logs, logger)
	router.Mux().Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Listen.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("apengined listening", internallog.String("addr", cfg.Listen.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", internallog.String("signal", sig.String()))
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during shutdown", internallog.Error(err))
		}
	case err := <-errCh:
		logger.Error("daemon error", internallog.Error(err))
		os.Exit(1)
	}
}

// buildStore constructs the configured Store backend plus its close
// func; memory has nothing to close.
func buildStore(ctx context.Context, cfg config.BackendConfig) (store.Store, func(), error) {
	switch cfg.Type {
	case "memory":
		return memory.New(), func() {}, nil
	case "sqlite", "postgres":
		s, err := sqldriver.New(ctx, sqldriver.Config{Driver: cfg.Type, DSN: cfg.DSN})
		if err != nil {
			return nil, nil, fmt.Errorf("open %s store: %w", cfg.Type, err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend.type %q", cfg.Type)
	}
}

// buildSecretsRegistry registers the secret providers that resolve a
// scheme-prefixed request-options auth or SMTP credential field
// (env:VAR, file:/path) into its plaintext value. "plain" (an
// unprefixed literal) is registered by secrets.NewRegistry itself.
func buildSecretsRegistry(cfg config.SecretsConfig) *secrets.Registry {
	reg := secrets.NewRegistry()
	_ = reg.Register(secrets.NewEnvProvider(secrets.InheritEnvConfig{
		Enabled:   cfg.InheritEnv,
		Allowlist: cfg.EnvAllowlist,
	}))
	if len(cfg.FileAllowlist) > 0 {
		_ = reg.Register(secrets.NewFileProvider(secrets.FileProviderConfig{
			Enabled:   true,
			Allowlist: cfg.FileAllowlist,
		}))
	}
	return reg
}

// resolveOptionalSecret resolves v through reg unless v is empty, since
// an unauthenticated SMTP relay legitimately leaves username/password
// blank and an empty reference is not a valid one to resolve. Every
// resolved value is registered with masker (if non-nil) so it never
// appears verbatim in a later log line.
func resolveOptionalSecret(ctx context.Context, reg *secrets.Registry, masker *secrets.Masker, v string) (string, error) {
	if v == "" {
		return "", nil
	}
	resolved, err := reg.Resolve(ctx, v)
	if err != nil {
		return "", err
	}
	if masker != nil {
		masker.AddSecret(resolved)
	}
	return resolved, nil
}

// buildFetcher wires every Reference Fetcher scheme the engine
// supports. The vault:// scheme is registered only when the ambient
// Vault client environment (VAULT_ADDR) is configured, since most
// deployments never resolve a vault:// input reference. resolver
// resolves a request-options auth value's scheme-prefixed secret
// reference; passing a secrets.CacheResolver (rather than the
// secrets.Registry directly) means a bearer token reused across many
// fetches within one job is resolved once per job, not once per fetch.
func buildFetcher(ctx context.Context, cfg *config.Config, resolver fetch.SecretResolver, logger *slog.Logger) (*fetch.Fetcher, error) {
	policy, err := buildRequestPolicy(cfg.RequestOptionsFile)
	if err != nil {
		return nil, err
	}

	schemes := map[string]fetch.Scheme{
		"file":  fetch.NewFileScheme(cfg.StagingRoot),
		"http":  fetch.NewPolicyHTTPSchemeWithSecrets(policy, resolver),
		"https": fetch.NewPolicyHTTPSchemeWithSecrets(policy, resolver),
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Warn("s3 reference fetching disabled: failed to load AWS config", internallog.Error(err))
	} else {
		schemes["s3"] = fetch.NewS3Scheme(s3.NewFromConfig(awsCfg))
	}

	if addr := os.Getenv("VAULT_ADDR"); addr != "" {
		vc, err := vaultapi.NewClient(vaultapi.DefaultConfig())
		if err != nil {
			logger.Warn("vault reference fetching disabled: failed to build client", internallog.Error(err))
		} else {
			schemes["vault"] = fetch.NewVaultScheme(vc.Logical())
		}
	}

	return fetch.New(schemes, logger), nil
}

// buildRequestPolicy loads the outbound-request policy rules, JSON-
// encoded (model.RequestOptionsRule carries only `json` tags, the wire
// format its §8 policy document already uses).
func buildRequestPolicy(path string) (*fetch.Policy, error) {
	if path == "" {
		return fetch.NewPolicy(nil, model.DefaultRequestOptions())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request-options file: %w", err)
	}
	var rules []model.RequestOptionsRule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parse request-options file: %w", err)
	}
	return fetch.NewPolicy(rules, model.DefaultRequestOptions())
}

func buildDataSourceMapping(path string) (*datasource.Mapping, error) {
	if path == "" {
		return datasource.New(nil)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data-source mapping file: %w", err)
	}
	var rules []datasource.Rule
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parse data-source mapping file: %w", err)
	}
	return datasource.New(rules)
}
