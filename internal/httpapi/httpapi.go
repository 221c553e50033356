// Package httpapi exposes the extraction pipeline over HTTP.
//
// Routes:
//
//	POST /v1/extract    multipart field "image" or a raw image body
//	GET  /v1/languages  supported language catalogue
//	GET  /health        liveness
//	GET  /metrics       Prometheus exposition
//
// A successful extraction answers 200 with the ExtractionResult JSON, or
// the plain text as a download when ?format=text is given. Invalid images
// and unknown policies answer 400, oversized uploads 413 and an extraction
// where every backend failed 502 with the result still in the body.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/image-text-mcp/internal/backend"
	"github.com/ironsheep/image-text-mcp/internal/config"
	"github.com/ironsheep/image-text-mcp/internal/extract"
	"github.com/ironsheep/image-text-mcp/internal/imaging"
	"github.com/ironsheep/image-text-mcp/internal/metrics"
)

// ShutdownTimeout bounds graceful shutdown once the serving context ends.
const ShutdownTimeout = 30 * time.Second

// multipartOverhead is the slack allowed on top of MaxBytes for multipart
// boundaries and form fields.
const multipartOverhead = 1 << 20

// TextFilename is the download name used for ?format=text.
const TextFilename = "extracted_text.txt"

// Options wires an API to the extraction pipeline.
type Options struct {
	Orchestrator *extract.Orchestrator
	Config       *config.Config
	Metrics      *metrics.Metrics

	// Gatherer backs GET /metrics. The route is omitted when nil.
	Gatherer prometheus.Gatherer

	Logger  logrus.FieldLogger
	Version string
}

// API serves the HTTP surface.
type API struct {
	orchestrator *extract.Orchestrator
	cfg          *config.Config
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	log          logrus.FieldLogger
	version      string
	router       *mux.Router
}

// New builds an API and its router.
func New(opts Options) *API {
	a := &API{
		orchestrator: opts.Orchestrator,
		cfg:          opts.Config,
		metrics:      opts.Metrics,
		gatherer:     opts.Gatherer,
		log:          opts.Logger,
		version:      opts.Version,
	}
	if a.orchestrator == nil {
		a.orchestrator = &extract.Orchestrator{}
	}
	if a.cfg == nil {
		a.cfg = config.Default()
	}
	if a.log == nil {
		a.log = logrus.StandardLogger()
	}
	if a.version == "" {
		a.version = "dev"
	}

	r := mux.NewRouter()
	r.Use(a.instrument)
	r.HandleFunc("/v1/extract", a.handleExtract).Methods(http.MethodPost)
	r.HandleFunc("/v1/languages", a.handleLanguages).Methods(http.MethodGet)
	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	if a.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	a.router = r
	return a
}

// Handler returns the routed handler.
func (a *API) Handler() http.Handler {
	return a.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within ShutdownTimeout.
func (a *API) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", addr).Info("HTTP API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return <-errCh
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (a *API) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}
		elapsed := time.Since(start)
		a.metrics.ObserveHTTP(r.Method, endpoint, rec.code, elapsed)
		a.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"endpoint": endpoint,
			"status":   rec.code,
			"elapsed":  elapsed,
		}).Debug("http request")
	})
}

// upload is one extraction request decoded from either body form.
type upload struct {
	data      []byte
	hint      string
	languages []string
	policy    string
}

func (a *API) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxBytes+multipartOverhead)

	up, err := a.readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge), errors.Is(err, errTooLarge), errors.Is(err, multipart.ErrMessageTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("image exceeds limit of %d bytes", a.cfg.MaxBytes))
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	policy := a.cfg.Policy
	if up.policy != "" {
		p, err := extract.ParsePolicy(up.policy)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		policy = p
	}

	res, err := a.orchestrator.Extract(r.Context(), extract.Input{
		Image:     up.data,
		MIMEType:  up.hint,
		Languages: up.languages,
		Policy:    policy,
	})
	switch {
	case errors.Is(err, imaging.ErrInvalidImage), errors.Is(err, extract.ErrInvalidPolicy), errors.Is(err, backend.ErrNoLanguages):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, extract.ErrAllBackendsFailed):
		writeJSON(w, http.StatusBadGateway, res)
		return
	case err != nil:
		a.log.WithError(err).Error("extraction failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "text") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", TextFilename))
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, res.Text)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

var errTooLarge = errors.New("image too large")

// readUpload decodes a multipart form with an "image" file field, or
// treats the whole body as the image.
func (a *API) readUpload(r *http.Request) (*upload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(a.cfg.MaxBytes); err != nil {
			return nil, err
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			return nil, fmt.Errorf("missing form field \"image\": %w", err)
		}
		defer file.Close()

		data, err := a.readLimited(file)
		if err != nil {
			return nil, err
		}
		hint := header.Header.Get("Content-Type")
		if !isImageType(hint) {
			hint = strings.TrimPrefix(filepath.Ext(header.Filename), ".")
		}
		return &upload{
			data:      data,
			hint:      hint,
			languages: splitList(r.FormValue("languages")),
			policy:    r.FormValue("policy"),
		}, nil
	}

	data, err := a.readLimited(r.Body)
	if err != nil {
		return nil, err
	}
	hint := ""
	if isImageType(mediaType) {
		hint = mediaType
	}
	q := r.URL.Query()
	return &upload{
		data:      data,
		hint:      hint,
		languages: splitList(q.Get("languages")),
		policy:    q.Get("policy"),
	}, nil
}

func (a *API) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, a.cfg.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > a.cfg.MaxBytes {
		return nil, errTooLarge
	}
	return data, nil
}

func isImageType(t string) bool {
	return strings.HasPrefix(strings.ToLower(t), "image/")
}

// splitList parses "en,es" or "en es" into codes.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

// LanguagesResponse is returned by GET /v1/languages.
type LanguagesResponse struct {
	Languages []backend.Language `json:"languages"`
	Default   []string           `json:"default"`
}

func (a *API) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &LanguagesResponse{
		Languages: backend.SupportedLanguages(),
		Default:   a.cfg.Languages,
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": a.version,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
