package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	githubsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/modkit/modnotes/internal/auth"
	"github.com/modkit/modnotes/internal/modactions"
	"github.com/modkit/modnotes/internal/moderators"
	"github.com/modkit/modnotes/internal/removalreasons"
	"github.com/modkit/modnotes/internal/usernotes"
	"github.com/modkit/modnotes/internal/wikistore"
)

const (
	testModeratorName     = "modalice"
	testModeratorPassword = "correct horse battery"
	testSessionCookie     = "modnotes_session"
)

type fakeWiki struct {
	mu     sync.Mutex
	pages  map[string][]byte
	writes int
}

func newFakeWiki() *fakeWiki {
	return &fakeWiki{pages: make(map[string][]byte)}
}

func (f *fakeWiki) seed(subreddit, name, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[subreddit+"/"+name] = []byte(body)
}

func (f *fakeWiki) page(subreddit, name string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.pages[subreddit+"/"+name]
	return body, ok
}

func (f *fakeWiki) ReadDocument(_ context.Context, subreddit, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.pages[subreddit+"/"+name]
	if !ok {
		return nil, wikistore.ErrNoPage
	}
	return append([]byte(nil), body...), nil
}

func (f *fakeWiki) WriteDocument(_ context.Context, subreddit, name string, body []byte, _ bool, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[subreddit+"/"+name] = append([]byte(nil), body...)
	f.writes++
	return nil
}

type fakeRemovalActions struct {
	removed   []string
	comments  []string
	pms       []string
	flaired   []string
	logPosted []string
	banned    []string
}

func (f *fakeRemovalActions) Approve(_ context.Context, fullname string) error { return nil }

func (f *fakeRemovalActions) Remove(_ context.Context, fullname string) error {
	f.removed = append(f.removed, fullname)
	return nil
}

func (f *fakeRemovalActions) PostComment(_ context.Context, parentFullname, body string) (string, error) {
	f.comments = append(f.comments, body)
	return "t1_comment", nil
}

func (f *fakeRemovalActions) DistinguishComment(_ context.Context, commentID string) error {
	return nil
}

func (f *fakeRemovalActions) SendPM(_ context.Context, recipient, subject, body string) error {
	f.pms = append(f.pms, body)
	return nil
}

func (f *fakeRemovalActions) FlairPost(_ context.Context, fullname, subreddit, text, css string) error {
	f.flaired = append(f.flaired, text)
	return nil
}

func (f *fakeRemovalActions) PostLink(_ context.Context, url, title, subreddit string) (string, error) {
	f.logPosted = append(f.logPosted, title)
	return "https://example.com/r/" + subreddit + "/comments/1log9/removed/", nil
}

func (f *fakeRemovalActions) BanUser(_ context.Context, subreddit, user, note, message string) error {
	f.banned = append(f.banned, user+"|"+note)
	return nil
}

type testEnv struct {
	handler http.Handler
	server  *httptest.Server
	wiki    *fakeWiki
	actions *fakeRemovalActions
	notes   *usernotes.Store
	issuer  *auth.TokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(githubsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&moderators.Identity{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	moderatorService, err := moderators.NewService(moderators.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct moderator service: %v", err)
	}
	if _, err := moderatorService.Register(context.Background(), testModeratorName, testModeratorPassword, "Alice"); err != nil {
		t.Fatalf("failed to register moderator: %v", err)
	}

	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("server-test-secret"),
		Issuer:        "modnotes-auth",
		Audience:      "modnotes-api",
		TokenTTL:      time.Minute,
	})
	sessions, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte("server-test-secret"),
		Issuer:        "modnotes-auth",
		CookieName:    testSessionCookie,
	})
	if err != nil {
		t.Fatalf("failed to construct session validator: %v", err)
	}

	wiki := newFakeWiki()
	notesStore, err := usernotes.NewStore(usernotes.StoreConfig{Transport: wiki})
	if err != nil {
		t.Fatalf("failed to construct usernotes store: %v", err)
	}
	resolver, err := removalreasons.NewResolver(removalreasons.ResolverConfig{Transport: wiki})
	if err != nil {
		t.Fatalf("failed to construct reasons resolver: %v", err)
	}

	actions := &fakeRemovalActions{}
	pipeline, err := modactions.NewPipeline(modactions.PipelineConfig{
		Moderator: actions,
		Messenger: actions,
		Flairer:   actions,
		LogPoster: actions,
		Banner:    actions,
	})
	if err != nil {
		t.Fatalf("failed to construct removal pipeline: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Moderators:   moderatorService,
		TokenManager: issuer,
		Notes:        notesStore,
		Reasons:      resolver,
		Pipeline:     pipeline,
		Sessions:     sessions,
		Realtime:     NewRealtimeDispatcher(),
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &testEnv{
		handler: handler,
		server:  server,
		wiki:    wiki,
		actions: actions,
		notes:   notesStore,
		issuer:  issuer,
	}
}

func (env *testEnv) login(t *testing.T) string {
	t.Helper()
	payload := fmt.Sprintf(`{"name":%q,"password":%q}`, testModeratorName, testModeratorPassword)
	response, err := http.Post(env.server.URL+"/auth/login", "application/json", bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("unexpected login status: %d", response.StatusCode)
	}
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if body.AccessToken == "" {
		t.Fatal("expected a non-empty access token")
	}
	return body.AccessToken
}

func (env *testEnv) do(t *testing.T, method, path, token, payload string) *http.Response {
	t.Helper()
	var body *bytes.Buffer
	if payload == "" {
		body = bytes.NewBuffer(nil)
	} else {
		body = bytes.NewBufferString(payload)
	}
	request, err := http.NewRequest(method, env.server.URL+path, body)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	if payload != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return response
}

func seedNotesDocument(t *testing.T, wiki *fakeWiki, subreddit string, doc *usernotes.Document) {
	t.Helper()
	raw, err := usernotes.Encode(doc)
	if err != nil {
		t.Fatalf("failed to encode document: %v", err)
	}
	wiki.seed(subreddit, usernotes.PageName, string(raw))
}
