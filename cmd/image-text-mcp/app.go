package main

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/image-text-mcp/internal/config"
	"github.com/ironsheep/image-text-mcp/internal/extract"
	"github.com/ironsheep/image-text-mcp/internal/imaging"
	"github.com/ironsheep/image-text-mcp/internal/logging"
	"github.com/ironsheep/image-text-mcp/internal/metrics"
	"github.com/ironsheep/image-text-mcp/internal/ocr"
	"github.com/ironsheep/image-text-mcp/internal/ocr/tesseract"
	"github.com/ironsheep/image-text-mcp/internal/remote"
)

// app holds the wired pipeline shared by every command.
type app struct {
	cfg          *config.Config
	log          *logrus.Logger
	registry     *prometheus.Registry
	metrics      *metrics.Metrics
	cache        *ocr.ModelCache
	orchestrator *extract.Orchestrator
}

// appOptions come from the persistent flags.
type appOptions struct {
	envFile  string
	logLevel string
	logOut   io.Writer
}

// newApp loads the configuration and builds both backends. The remote
// backend is always present so a missing credential shows up as a
// categorized failure; its generator exists only when a key is set.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	var envFiles []string
	if opts.envFile != "" {
		envFiles = append(envFiles, opts.envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	log, err := logging.New(cfg.LogLevel, opts.logOut)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}

	cache := ocr.NewModelCache(tesseract.NewLoader(tesseract.Options{
		TessdataPrefix: cfg.TessdataPrefix,
	}))
	cache.Observe(m.ObserveModelLoad)

	remoteBackend := &remote.Backend{
		Credential: cfg.APIKey,
		Model:      cfg.Model,
		MaxSide:    cfg.RemoteMaxSide,
		Timeout:    cfg.RemoteTimeout,
		BaseDelay:  cfg.RetryBaseDelay,
		Logger:     log.WithField("backend", "remote"),
	}
	if cfg.HasCredential() {
		gen, err := remote.NewGeminiGenerator(ctx, cfg.APIKey, cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		remoteBackend.Generator = gen
	} else {
		log.Warnf("%s is not set; the remote backend will report a missing credential", config.EnvAPIKey)
	}

	orch := &extract.Orchestrator{
		Normalizer: imaging.Normalizer{
			MaxBytes:     cfg.MaxBytes,
			MaxDimension: cfg.MaxDimension,
		},
		Remote: remoteBackend,
		Local: &ocr.Backend{
			Cache:   cache,
			Timeout: cfg.LocalTimeout,
			Logger:  log.WithField("backend", "local"),
		},
		DefaultLanguages: cfg.Languages,
		DefaultPolicy:    cfg.Policy,
		Metrics:          m,
		Logger:           log,
	}

	return &app{
		cfg:          cfg,
		log:          log,
		registry:     reg,
		metrics:      m,
		cache:        cache,
		orchestrator: orch,
	}, nil
}

// close releases the loaded OCR model sets.
func (a *app) close() {
	if err := a.cache.Close(); err != nil {
		a.log.WithError(err).Warn("failed to release OCR models")
	}
}
