package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/image-text-mcp/internal/backend"
	"github.com/ironsheep/image-text-mcp/internal/imaging"
	"github.com/ironsheep/image-text-mcp/internal/metrics"
	"github.com/ironsheep/image-text-mcp/internal/stats"
)

// ErrAllBackendsFailed is returned when every invoked backend failed. The
// accompanying Result carries the per-backend reasons.
var ErrAllBackendsFailed = errors.New("all backends failed")

// DefaultLanguages is the language set used when a request names none.
var DefaultLanguages = []string{"en"}

// Input is one extraction request before normalization.
type Input struct {
	Image     []byte
	MIMEType  string
	Languages []string
	Policy    Policy
}

// Result is the outcome of one extraction.
type Result struct {
	// Text is the winning backend's text, or empty when every backend failed.
	Text string `json:"text"`

	// Backend is the backend whose text was chosen. Empty on failure.
	Backend backend.ID `json:"backend,omitempty"`

	// Contributors lists the backend behind Text on success, or every
	// invoked backend on failure.
	Contributors []backend.ID `json:"contributors"`

	// Attempts holds each invoked backend's result in invocation order.
	Attempts []backend.Result `json:"attempts"`

	Statistics   stats.TextStatistics `json:"statistics"`
	Policy       Policy               `json:"policy"`
	Languages    []string             `json:"languages"`
	FallbackUsed bool                 `json:"fallback_used"`
	State        State                `json:"state"`

	// Error aggregates the per-backend failure reasons, e.g.
	// "remote: missing credential; local: timeout".
	Error string `json:"error,omitempty"`

	Image   *imaging.ImageInfo `json:"image,omitempty"`
	Elapsed time.Duration      `json:"elapsed_ns"`
}

// Orchestrator runs extractions against a remote and a local backend.
//
// It holds no per-request state and is safe for concurrent use as long as
// its backends are.
type Orchestrator struct {
	Normalizer imaging.Normalizer

	// Remote and Local may be nil; a policy that selects a missing backend
	// gets a "backend not configured" failure for it.
	Remote backend.Backend
	Local  backend.Backend

	// DefaultLanguages overrides the package DefaultLanguages.
	DefaultLanguages []string

	// DefaultPolicy is used when Input.Policy is empty. Zero means
	// the package DefaultPolicy.
	DefaultPolicy Policy

	Metrics *metrics.Metrics
	Logger  logrus.FieldLogger
}

// Extract normalizes the image and runs ExtractAsset's pipeline on it.
//
// It returns an error wrapping imaging.ErrInvalidImage when the image is
// rejected, ErrInvalidPolicy for an unknown policy, and ErrAllBackendsFailed
// (together with a non-nil Result) when every invoked backend failed.
func (o *Orchestrator) Extract(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	m := newMachine()
	m.must(StateNormalizing)

	policy, err := o.resolvePolicy(m, in.Policy)
	if err != nil {
		return nil, err
	}

	asset, err := o.Normalizer.Normalize(in.Image, in.MIMEType)
	if err != nil {
		m.must(StateFailed)
		o.Metrics.ObserveExtraction(string(policy), "invalid")
		o.logger().WithError(err).Warn("image rejected")
		return nil, err
	}
	return o.run(ctx, m, start, asset, in.Languages, policy)
}

// ExtractAsset runs the pipeline on an already normalized asset.
func (o *Orchestrator) ExtractAsset(ctx context.Context, asset *imaging.Asset, languages []string, policy Policy) (*Result, error) {
	start := time.Now()
	m := newMachine()
	m.must(StateNormalizing)
	resolved, err := o.resolvePolicy(m, policy)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		m.must(StateFailed)
		return nil, fmt.Errorf("%w: no image", imaging.ErrInvalidImage)
	}
	return o.run(ctx, m, start, asset, languages, resolved)
}

// resolvePolicy applies the default policy and rejects unknown ones before
// any decoding work is done.
func (o *Orchestrator) resolvePolicy(m *machine, requested Policy) (Policy, error) {
	policy := o.policyOrDefault(requested)
	if !policy.Valid() {
		m.must(StateFailed)
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, requested)
	}
	return policy, nil
}

func (o *Orchestrator) run(ctx context.Context, m *machine, start time.Time, asset *imaging.Asset, languages []string, policy Policy) (*Result, error) {

	langs := backend.NormalizeLanguages(languages)
	if len(langs) == 0 {
		langs = o.defaultLanguages()
	}
	req, err := backend.NewRequest(asset, langs)
	if err != nil {
		m.must(StateFailed)
		return nil, err
	}

	m.must(StateDispatching)
	results, fallback := o.dispatch(ctx, policy, req)

	m.must(StateReconciling)
	res := &Result{
		Attempts:     results,
		Policy:       policy,
		Languages:    req.Languages(),
		FallbackUsed: fallback,
		Image:        imaging.Info(asset),
	}

	winner, ok := Reconcile(results)
	if ok {
		m.must(StateDone)
		res.Text = winner.Text
		res.Backend = winner.Backend
		res.Contributors = []backend.ID{winner.Backend}
	} else {
		m.must(StateFailed)
		res.Error = aggregateReasons(results)
		for _, r := range results {
			res.Contributors = append(res.Contributors, r.Backend)
		}
	}
	res.State = m.state
	res.Statistics = stats.Compute(res.Text)
	res.Elapsed = time.Since(start)

	o.Metrics.ObserveExtraction(string(policy), string(res.State))
	log := o.logger().WithFields(logrus.Fields{
		"policy":    policy,
		"languages": res.Languages,
		"backend":   res.Backend,
		"fallback":  res.FallbackUsed,
		"state":     res.State,
		"elapsed":   res.Elapsed,
	})
	if !ok {
		log.WithField("reason", res.Error).Warn("extraction failed")
		return res, fmt.Errorf("%w: %s", ErrAllBackendsFailed, res.Error)
	}
	log.WithField("characters", res.Statistics.Characters).Info("extraction finished")
	return res, nil
}

// dispatch invokes the backends the policy selects. It reports whether the
// remote-to-local fallback was taken.
func (o *Orchestrator) dispatch(ctx context.Context, policy Policy, req backend.Request) ([]backend.Result, bool) {
	switch policy {
	case PolicyRemote:
		return []backend.Result{o.call(ctx, o.Remote, backend.Remote, req)}, false

	case PolicyLocal:
		return []backend.Result{o.call(ctx, o.Local, backend.Local, req)}, false

	case PolicyBoth:
		results := make([]backend.Result, 2)
		var g errgroup.Group
		g.Go(func() error {
			results[0] = o.call(ctx, o.Remote, backend.Remote, req)
			return nil
		})
		g.Go(func() error {
			results[1] = o.call(ctx, o.Local, backend.Local, req)
			return nil
		})
		g.Wait()
		return results, false

	default: // PolicyRemoteThenLocal
		remote := o.call(ctx, o.Remote, backend.Remote, req)
		if remote.Success {
			return []backend.Result{remote}, false
		}
		o.Metrics.ObserveFallback()
		o.logger().WithFields(logrus.Fields{
			"backend": backend.Remote,
			"reason":  remote.Reason,
		}).Info("remote backend failed, falling back to local OCR")
		return []backend.Result{remote, o.call(ctx, o.Local, backend.Local, req)}, true
	}
}

func (o *Orchestrator) call(ctx context.Context, b backend.Backend, id backend.ID, req backend.Request) backend.Result {
	if b == nil {
		return backend.Failed(id, backend.KindUnavailable, 0, "backend not configured")
	}
	res := b.Recognize(ctx, req)
	if res.Backend == "" {
		res.Backend = id
	}
	if !res.Success {
		res.Text = ""
		if res.Reason == "" {
			res.Reason = "unknown error"
		}
	}
	o.Metrics.ObserveBackend(string(id), res.Success, res.Elapsed)
	return res
}

// Reconcile picks the final result among the invoked backends' results.
//
// A successful result beats a failed one; among successes, non-empty text
// beats empty text, and the remote backend wins remaining ties. It reports
// false when no result succeeded. With a single result, that result decides.
func Reconcile(results []backend.Result) (backend.Result, bool) {
	best := -1
	bestScore := -1
	for i, r := range results {
		if !r.Success {
			continue
		}
		score := 0
		if r.Text != "" {
			score += 2
		}
		if r.Backend == backend.Remote {
			score++
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return backend.Result{}, false
	}
	return results[best], true
}

func aggregateReasons(results []backend.Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Backend, r.Reason))
	}
	return strings.Join(parts, "; ")
}

func (o *Orchestrator) policyOrDefault(p Policy) Policy {
	if p != "" {
		return p
	}
	if o.DefaultPolicy != "" {
		return o.DefaultPolicy
	}
	return DefaultPolicy
}

func (o *Orchestrator) defaultLanguages() []string {
	if langs := backend.NormalizeLanguages(o.DefaultLanguages); len(langs) > 0 {
		return langs
	}
	return DefaultLanguages
}

func (o *Orchestrator) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}
