package removalreasons

import (
	"context"
	"errors"
	"testing"

	"github.com/modkit/modnotes/internal/wikistore"
)

type fakeConfigTransport struct {
	pages   map[string]string
	fetches int
	failAll bool
}

func newFakeConfigTransport() *fakeConfigTransport {
	return &fakeConfigTransport{pages: make(map[string]string)}
}

func (f *fakeConfigTransport) ReadDocument(_ context.Context, subreddit, name string) ([]byte, error) {
	f.fetches++
	if f.failAll {
		return nil, errors.New("transport down")
	}
	body, ok := f.pages[subreddit+"/"+name]
	if !ok {
		return nil, wikistore.ErrNoPage
	}
	return []byte(body), nil
}

type fakeStylesheet struct {
	configs map[string]Config
	calls   int
}

func (f *fakeStylesheet) ExtractReasons(_ context.Context, subreddit string) (Config, bool, error) {
	f.calls++
	cfg, ok := f.configs[subreddit]
	return cfg, ok, nil
}

func newTestResolver(t *testing.T, transport WikiTransport, stylesheet StylesheetExtractor) *Resolver {
	t.Helper()
	resolver, err := NewResolver(ResolverConfig{Transport: transport, Stylesheet: stylesheet})
	if err != nil {
		t.Fatalf("unexpected resolver construction error: %v", err)
	}
	return resolver
}

func TestResolveReturnsWikiConfig(t *testing.T) {
	transport := newFakeConfigTransport()
	transport.pages["pics/toolbox"] = `{
		"removalReasons": {
			"pmsubject": "Removed from {subreddit}",
			"header": "Hello,",
			"reasons": [{"text": "Rule 1.", "flairText": "r1", "flairCSS": "rule1"}]
		}
	}`
	resolver := newTestResolver(t, transport, nil)

	cfg, err := resolver.Resolve(context.Background(), "pics")
	if err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	if len(cfg.Reasons) != 1 || cfg.Reasons[0].FlairCSS != "rule1" {
		t.Fatalf("unexpected reasons: %#v", cfg.Reasons)
	}
	if cfg.PMSubject != "Removed from {subreddit}" {
		t.Fatalf("configured subject must win over the default, got %q", cfg.PMSubject)
	}
	if cfg.LogTitle != DefaultLogTitle || cfg.BanTitle != DefaultBanTitle {
		t.Fatalf("missing fields must take defaults: %#v", cfg)
	}
}

func TestResolveCachesPerSession(t *testing.T) {
	transport := newFakeConfigTransport()
	transport.pages["pics/toolbox"] = `{"removalReasons": {"reasons": [{"text": "Rule 1."}]}}`
	resolver := newTestResolver(t, transport, nil)

	if _, err := resolver.Resolve(context.Background(), "pics"); err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), "pics"); err != nil {
		t.Fatalf("unexpected second resolve error: %v", err)
	}
	if transport.fetches != 1 {
		t.Fatalf("expected a single external fetch, got %d", transport.fetches)
	}
}

func TestResolveNegativeCachesNotEnabled(t *testing.T) {
	transport := newFakeConfigTransport()
	resolver := newTestResolver(t, transport, &fakeStylesheet{})

	if _, err := resolver.Resolve(context.Background(), "quietsub"); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled, got %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), "quietsub"); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled on second call, got %v", err)
	}
	if transport.fetches != 1 {
		t.Fatalf("expected negative cache to suppress refetch, got %d fetches", transport.fetches)
	}
}

func TestResolveFollowsRedirect(t *testing.T) {
	transport := newFakeConfigTransport()
	transport.pages["satellite/toolbox"] = `{"removalReasons": {"getfrom": "mothership"}}`
	transport.pages["mothership/toolbox"] = `{"removalReasons": {"reasons": [{"text": "Shared rule."}]}}`
	resolver := newTestResolver(t, transport, nil)

	cfg, err := resolver.Resolve(context.Background(), "satellite")
	if err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	if len(cfg.Reasons) != 1 || cfg.Reasons[0].Text != "Shared rule." {
		t.Fatalf("expected the redirect target's reasons, got %#v", cfg.Reasons)
	}

	// Both hops are cached; resolving the target directly must not refetch.
	fetchesBefore := transport.fetches
	if _, err := resolver.Resolve(context.Background(), "mothership"); err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	if transport.fetches != fetchesBefore {
		t.Fatalf("expected redirect target to be cached, got %d extra fetches", transport.fetches-fetchesBefore)
	}
}

func TestResolveBreaksRedirectCycle(t *testing.T) {
	transport := newFakeConfigTransport()
	transport.pages["a/toolbox"] = `{"removalReasons": {"getfrom": "b"}}`
	transport.pages["b/toolbox"] = `{"removalReasons": {"getfrom": "a"}}`
	resolver := newTestResolver(t, transport, nil)

	if _, err := resolver.Resolve(context.Background(), "a"); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected cycle to fail open to ErrNotEnabled, got %v", err)
	}
}

func TestResolveFallsBackToStylesheet(t *testing.T) {
	transport := newFakeConfigTransport()
	stylesheet := &fakeStylesheet{configs: map[string]Config{
		"legacysub": {Reasons: []Reason{{Text: "From the stylesheet."}}},
	}}
	resolver := newTestResolver(t, transport, stylesheet)

	cfg, err := resolver.Resolve(context.Background(), "legacysub")
	if err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	if len(cfg.Reasons) != 1 || cfg.Reasons[0].Text != "From the stylesheet." {
		t.Fatalf("expected stylesheet reasons, got %#v", cfg.Reasons)
	}
	if cfg.PMSubject != DefaultPMSubject {
		t.Fatalf("stylesheet configs must carry template defaults, got %q", cfg.PMSubject)
	}

	// The stylesheet result is cached like any other config.
	if _, err := resolver.Resolve(context.Background(), "legacysub"); err != nil {
		t.Fatalf("unexpected second resolve error: %v", err)
	}
	if stylesheet.calls != 1 {
		t.Fatalf("expected one stylesheet extraction, got %d", stylesheet.calls)
	}
}

func TestResolveFailsOpenOnTransportError(t *testing.T) {
	transport := newFakeConfigTransport()
	transport.failAll = true
	resolver := newTestResolver(t, transport, nil)

	if _, err := resolver.Resolve(context.Background(), "pics"); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected transport failure to read as ErrNotEnabled, got %v", err)
	}
}

func TestResolveTreatsConfigWithoutReasonSectionAsMissing(t *testing.T) {
	transport := newFakeConfigTransport()
	transport.pages["pics/toolbox"] = `{"otherSection": {"enabled": true}}`
	resolver := newTestResolver(t, transport, nil)

	if _, err := resolver.Resolve(context.Background(), "pics"); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled without a removalReasons section, got %v", err)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	transport := newFakeConfigTransport()
	transport.pages["pics/toolbox"] = `{"removalReasons": {"reasons": [{"text": "Rule 1."}]}}`
	resolver := newTestResolver(t, transport, nil)

	if _, err := resolver.Resolve(context.Background(), "pics"); err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	resolver.Invalidate("pics")
	if _, err := resolver.Resolve(context.Background(), "pics"); err != nil {
		t.Fatalf("unexpected resolve error after invalidate: %v", err)
	}
	if transport.fetches != 2 {
		t.Fatalf("expected invalidate to force a refetch, got %d fetches", transport.fetches)
	}
}
