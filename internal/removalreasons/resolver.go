package removalreasons

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/modkit/modnotes/internal/cache"
)

// ErrNotEnabled indicates the subreddit has no removal-reason configuration
// anywhere: no wiki config, no stylesheet fallback, or a broken redirect
// chain. The result is negative-cached for the session.
var ErrNotEnabled = errors.New("removalreasons: not enabled for subreddit")

var errMissingTransport = errors.New("wiki transport is required")

const (
	opResolverNew = "removalreasons.resolver.new"
	opResolve     = "removalreasons.resolve"
)

// WikiTransport reads subreddit-scoped wiki documents.
type WikiTransport interface {
	ReadDocument(ctx context.Context, subreddit, name string) ([]byte, error)
}

// StylesheetExtractor recovers reason definitions from a subreddit's
// presentation stylesheet, the legacy configuration format. The boolean
// return reports whether anything usable was found.
type StylesheetExtractor interface {
	ExtractReasons(ctx context.Context, subreddit string) (Config, bool, error)
}

// ResolverConfig carries the dependencies for a Resolver. Cache handles
// default to fresh session-scoped instances when omitted; the stylesheet
// extractor is optional.
type ResolverConfig struct {
	Transport  WikiTransport
	Stylesheet StylesheetExtractor
	Configs    *cache.Map[Config]
	NotEnabled *cache.Set
	Logger     *zap.Logger
}

// Resolver resolves a subreddit's effective removal-reason configuration,
// following redirect chains and falling back to the stylesheet format.
// Resolution is idempotent per subreddit for the session: every outcome,
// positive or negative, is cached before it is returned.
type Resolver struct {
	transport  WikiTransport
	stylesheet StylesheetExtractor
	configs    *cache.Map[Config]
	notEnabled *cache.Set
	logger     *zap.Logger
}

// NewResolver validates dependencies and constructs a Resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("%s: %w", opResolverNew, errMissingTransport)
	}
	configs := cfg.Configs
	if configs == nil {
		configs = cache.NewMap[Config]()
	}
	notEnabled := cfg.NotEnabled
	if notEnabled == nil {
		notEnabled = cache.NewSet()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		transport:  cfg.Transport,
		stylesheet: cfg.Stylesheet,
		configs:    configs,
		notEnabled: notEnabled,
		logger:     logger,
	}, nil
}

// Resolve returns the effective configuration for the subreddit. Redirects
// are followed iteratively with a visited set; a cycle fails open to
// ErrNotEnabled rather than looping. Transport failures also fail open —
// the feature is simply unavailable for the subreddit this session.
func (r *Resolver) Resolve(ctx context.Context, subreddit string) (Config, error) {
	if r.notEnabled.Has(subreddit) {
		return Config{}, ErrNotEnabled
	}

	visited := make(map[string]struct{})
	current := subreddit
	for {
		if _, seen := visited[current]; seen {
			r.logger.Warn("removal reason redirect cycle",
				zap.String("operation", opResolve),
				zap.String("subreddit", subreddit),
				zap.String("cycle_at", current))
			r.notEnabled.Add(subreddit)
			return Config{}, fmt.Errorf("%w: redirect cycle at %s", ErrNotEnabled, current)
		}
		visited[current] = struct{}{}

		if r.notEnabled.Has(current) {
			r.notEnabled.Add(subreddit)
			return Config{}, ErrNotEnabled
		}

		cfg, ok := r.configs.Get(current)
		if !ok {
			cfg, ok = r.fetch(ctx, current)
			if !ok {
				r.notEnabled.Add(current)
				r.notEnabled.Add(subreddit)
				return Config{}, ErrNotEnabled
			}
			r.configs.Put(current, cfg)
		}

		if cfg.GetFrom != "" {
			current = cfg.GetFrom
			continue
		}
		return cfg, nil
	}
}

// Invalidate drops the session cache for a subreddit, forcing the next
// Resolve to hit the transport again.
func (r *Resolver) Invalidate(subreddit string) {
	r.configs.Delete(subreddit)
	r.notEnabled.Delete(subreddit)
}

// fetch tries the wiki document first and the stylesheet extractor second.
// Any failure along the way reads as "nothing configured here".
func (r *Resolver) fetch(ctx context.Context, subreddit string) (Config, bool) {
	raw, err := r.transport.ReadDocument(ctx, subreddit, ConfigPageName)
	if err == nil {
		cfg, ok, parseErr := parseConfig(raw)
		if parseErr != nil {
			r.logger.Warn("removal reason config unreadable",
				zap.String("operation", opResolve),
				zap.String("subreddit", subreddit),
				zap.Error(parseErr))
		} else if ok {
			return cfg, true
		}
	} else {
		r.logger.Debug("removal reason config fetch failed",
			zap.String("operation", opResolve),
			zap.String("subreddit", subreddit),
			zap.Error(err))
	}

	return r.fetchFromStylesheet(ctx, subreddit)
}

func (r *Resolver) fetchFromStylesheet(ctx context.Context, subreddit string) (Config, bool) {
	if r.stylesheet == nil {
		return Config{}, false
	}
	cfg, ok, err := r.stylesheet.ExtractReasons(ctx, subreddit)
	if err != nil {
		r.logger.Debug("stylesheet fallback failed",
			zap.String("operation", opResolve),
			zap.String("subreddit", subreddit),
			zap.Error(err))
		return Config{}, false
	}
	if !ok {
		return Config{}, false
	}
	// Stylesheet configs carry reasons only; give them the documented
	// template defaults.
	return configFromWire(wireReasons{Reasons: wireReasonsFromConfig(cfg)}), true
}

func wireReasonsFromConfig(cfg Config) []wireReason {
	reasons := make([]wireReason, 0, len(cfg.Reasons))
	for _, reason := range cfg.Reasons {
		reasons = append(reasons, wireReason{Text: reason.Text, FlairText: reason.FlairText, FlairCSS: reason.FlairCSS})
	}
	return reasons
}
