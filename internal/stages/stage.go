// Package stages implements the generation stage executors. Every executor
// tries its provider chain, validates what comes back, and falls back to a
// deterministic, network-free generator. Executors never panic and always
// return a site.Result.
package stages

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/dusk-indust/sitegen/internal/logging"
	"github.com/dusk-indust/sitegen/internal/metrics"
	"github.com/dusk-indust/sitegen/internal/provider"
	"github.com/dusk-indust/sitegen/internal/site"
)

// Paths a stage can take, as logged and counted.
const (
	PathPrimary   = "primary"
	PathAlternate = "alternate"
	PathFallback  = "fallback"
	PathFailed    = "failed"
)

// Milestone progress values reported by every executor.
const (
	ProgressRequestBuilt = 10
	progressCallStart    = 20
	progressCallSpan     = 50
	ProgressValidated    = 80
	ProgressFallback     = 80
)

// Reporter receives stage milestones. Progress is 0-100 and never decreases
// within one execution.
type Reporter interface {
	Report(progress int, message string)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(progress int, message string)

// Report calls f(progress, message).
func (f ReporterFunc) Report(progress int, message string) { f(progress, message) }

// Discard is a Reporter that drops every milestone.
var Discard Reporter = ReporterFunc(func(int, string) {})

// Invoker performs one provider call. *provider.Adapter implements it.
type Invoker interface {
	Invoke(ctx context.Context, id string, req provider.Request) site.Result[*provider.Response]
}

var _ Invoker = (*provider.Adapter)(nil)

// Env carries the dependencies shared by all executors.
type Env struct {
	Providers   Invoker
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	MaxTokens   int
	Temperature float64
}

// Executor is the generic stage contract.
type Executor[In, Out any] interface {
	Name() site.StageName
	Execute(ctx context.Context, in In, r Reporter) site.Result[Out]
}

type base struct {
	name   site.StageName
	env    Env
	chain  provider.Chain
	logger *slog.Logger
}

func newBase(name site.StageName, env Env, chain provider.Chain) base {
	logger := env.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return base{
		name:   name,
		env:    env,
		chain:  chain,
		logger: logger.With("stage", string(name)),
	}
}

// Name returns the stage identifier.
func (b *base) Name() site.StageName { return b.name }

func (b *base) textRequest(system, prompt string) provider.Request {
	return provider.Request{
		Kind:        provider.KindText,
		Stage:       b.name,
		System:      system,
		Prompt:      prompt,
		JSON:        true,
		MaxTokens:   b.env.MaxTokens,
		Temperature: b.env.Temperature,
	}
}

// aiResult is a validated provider answer.
type aiResult[T any] struct {
	value    T
	provider string
	path     string
}

// generate walks the provider chain in priority order. ok is false when the
// caller must fall back: the chain is empty or exhausted, or a provider
// answered with a malformed payload. A malformed payload falls back at once
// without consulting the rest of the chain. err is non-nil only when the
// context ended, in which case no further provider is called.
func generate[T any](ctx context.Context, b *base, req provider.Request, r Reporter, parse func([]byte) (T, error)) (out aiResult[T], ok bool, err error) {
	if b.env.Providers == nil {
		return out, false, nil
	}
	for i, id := range b.chain {
		if cerr := ctx.Err(); cerr != nil {
			return out, false, site.NewError(site.KindCancelled, string(b.name), cerr)
		}
		r.Report(progressCallStart+progressCallSpan*i/len(b.chain), "provider call started: "+id)

		res := b.env.Providers.Invoke(ctx, id, req)
		if !res.OK() {
			if res.Kind == site.KindCancelled {
				return out, false, res.Error()
			}
			b.logger.Warn("provider failed", "provider", id, "kind", res.Kind, "error", res.Err)
			continue
		}

		raw := []byte(res.Value.Text)
		if req.JSON {
			raw = extractJSON(raw)
		}
		v, perr := parse(raw)
		if perr != nil {
			b.logger.Warn("malformed response",
				"provider", id,
				"kind", site.KindMalformedResponse,
				"error", perr,
				"payload", truncate(res.Value.Text, 512))
			return out, false, nil
		}

		path := PathPrimary
		if i > 0 {
			path = PathAlternate
		}
		return aiResult[T]{value: v, provider: id, path: path}, true, nil
	}
	return out, false, nil
}

// succeed logs and counts the path taken and wraps v.
func succeed[T any](b *base, r Reporter, v T, path, providerID string) site.Result[T] {
	if path == PathFallback {
		r.Report(ProgressFallback, "fallback invoked")
	} else {
		r.Report(ProgressValidated, "validation passed")
	}
	b.logger.Info("stage finished", "path", path, "provider", providerID)
	b.env.Metrics.ObserveStage(string(b.name), path)
	return site.Success(v, path == PathFallback)
}

// cancelled wraps a cancellation observed mid-stage.
func cancelled[T any](b *base, err error) site.Result[T] {
	b.logger.Info("stage cancelled", "error", err)
	b.env.Metrics.ObserveStage(string(b.name), PathFailed)
	return site.Failure[T](site.KindCancelled, err)
}

// recoverTo turns a panic into a fallback result.
func recoverTo[T any](b *base, res *site.Result[T], fallback func() T) {
	if p := recover(); p != nil {
		b.logger.Error("stage panicked", "panic", p)
		b.env.Metrics.ObserveStage(string(b.name), PathFallback)
		*res = site.Success(fallback(), true)
	}
}

// extractJSON strips markdown fences and surrounding prose from a model
// answer, returning the outermost JSON object.
func extractJSON(text []byte) []byte {
	start := bytes.IndexByte(text, '{')
	end := bytes.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return bytes.TrimSpace(text)
	}
	return text[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func describe(cfg site.BusinessConfiguration) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Business: %s\nIndustry: %s\n", cfg.ProjectName, cfg.Industry)
	if loc := cfg.Location.String(); loc != "" {
		fmt.Fprintf(&b, "Location: %s\n", loc)
	}
	if len(cfg.Services) > 0 {
		fmt.Fprintf(&b, "Services: %s\n", joinList(cfg.Services))
	}
	if len(cfg.TargetAudiences) > 0 {
		fmt.Fprintf(&b, "Target audiences: %s\n", joinList(cfg.TargetAudiences))
	}
	if cfg.Tone != "" {
		fmt.Fprintf(&b, "Tone of voice: %s\n", cfg.Tone)
	}
	if cfg.Brand.Style != "" {
		fmt.Fprintf(&b, "Brand style: %s\n", cfg.Brand.Style)
	}
	if cfg.Brand.PrimaryColor != "" {
		fmt.Fprintf(&b, "Preferred primary color: %s\n", cfg.Brand.PrimaryColor)
	}
	if cfg.SpecialNotes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", cfg.SpecialNotes)
	}
	return b.String()
}
