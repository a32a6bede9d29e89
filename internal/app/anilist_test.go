package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/redsinal/questlog/internal/config"
	"github.com/redsinal/questlog/internal/domain"
)

func newTestAniList(t *testing.T, prefs *memPrefs, handler http.Handler) (*AniListService, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.AniList{
		ClientID:        "1234",
		ClientSecret:    "sekrit",
		RedirectURI:     "http://127.0.0.1:8080/api/v1/anilist/callback",
		AuthBaseURL:     srv.URL,
		GraphQLEndpoint: srv.URL + "/graphql",
	}
	return NewAniListService(zerolog.Nop(), cfg, prefs), srv
}

func TestAuthURL(t *testing.T) {
	svc, _ := newTestAniList(t, newMemPrefs(), http.NotFoundHandler())
	u := svc.AuthURL()
	if !strings.Contains(u, "/oauth/authorize?") {
		t.Fatalf("unexpected auth url %q", u)
	}
	for _, part := range []string{"client_id=1234", "response_type=code", "redirect_uri="} {
		if !strings.Contains(u, part) {
			t.Fatalf("auth url %q missing %q", u, part)
		}
	}
}

func TestExchangeCodePersistsToken(t *testing.T) {
	prefs := newMemPrefs()
	var gotForm map[string]string
	svc, _ := newTestAniList(t, prefs, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		gotForm = map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"code":          r.PostForm.Get("code"),
			"client_secret": r.PostForm.Get("client_secret"),
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"token_type":"Bearer","expires_in":31536000,"access_token":"tok-abc","refresh_token":"r"}`)
	}))

	ctx := context.Background()
	if err := svc.ExchangeCode(ctx, "code-1"); err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if gotForm["grant_type"] != "authorization_code" || gotForm["code"] != "code-1" || gotForm["client_secret"] != "sekrit" {
		t.Fatalf("unexpected form %v", gotForm)
	}
	if tok, err := svc.Token(ctx); err != nil || tok != "tok-abc" {
		t.Fatalf("token not persisted: %q %v", tok, err)
	}
	if !svc.Authenticated(ctx) {
		t.Fatalf("expected authenticated after exchange")
	}

	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if svc.Authenticated(ctx) {
		t.Fatalf("expected unauthenticated after logout")
	}
}

func TestExchangeCodeFailureKeepsRawBody(t *testing.T) {
	svc, _ := newTestAniList(t, newMemPrefs(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","hint":"Authorization code has expired"}`)
	}))

	err := svc.ExchangeCode(context.Background(), "stale")
	if err == nil {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(err.Error(), "HTTP 400") || !strings.Contains(err.Error(), "invalid_grant") {
		t.Fatalf("error must carry status and raw body: %v", err)
	}
}

func TestExchangeCodeMissingSecret(t *testing.T) {
	prefs := newMemPrefs()
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	svc := NewAniListService(zerolog.Nop(), config.AniList{
		ClientID:    "1234",
		AuthBaseURL: srv.URL,
	}, prefs)

	if err := svc.ExchangeCode(context.Background(), "code"); !errors.Is(err, ErrMissingClientSecret) {
		t.Fatalf("expected ErrMissingClientSecret, got %v", err)
	}
}

func TestHandleRedirect(t *testing.T) {
	svc, _ := newTestAniList(t, newMemPrefs(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"tok"}`)
	}))
	ctx := context.Background()

	if _, err := svc.HandleRedirect(ctx, map[string][]string{"error": {"access_denied"}}); err == nil || !strings.Contains(err.Error(), "access_denied") {
		t.Fatalf("error param must win: %v", err)
	}
	if _, err := svc.HandleRedirect(ctx, map[string][]string{}); err == nil {
		t.Fatalf("missing code must fail")
	}
	msg, err := svc.HandleRedirect(ctx, map[string][]string{"code": {"ok"}})
	if err != nil || msg != "AniList connected." {
		t.Fatalf("expected success message, got %q err=%v", msg, err)
	}
}

// anilistStub answers progress queries from a fixed table and records every
// progress mutation.
type anilistStub struct {
	remote    map[int]int
	mutations []string
}

func (a *anilistStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		mediaID := int(req.Variables["mediaId"].(float64))
		w.Header().Set("Content-Type", "application/json")

		if strings.Contains(req.Query, "SaveMediaListEntry") {
			progress := int(req.Variables["progress"].(float64))
			a.mutations = append(a.mutations, fmt.Sprintf("%d=%d", mediaID, progress))
			fmt.Fprintf(w, `{"data":{"SaveMediaListEntry":{"id":1,"progress":%d}}}`, progress)
			return
		}

		if n, ok := a.remote[mediaID]; ok {
			fmt.Fprintf(w, `{"data":{"Media":{"mediaListEntry":{"progress":%d}}}}`, n)
			return
		}
		fmt.Fprint(w, `{"data":{"Media":{"mediaListEntry":null}}}`)
	})
}

func TestSyncAll(t *testing.T) {
	prefs := newMemPrefs()
	prefs.m[keyAniListToken] = "tok"
	stub := &anilistStub{remote: map[int]int{101: 3, 202: 50}}
	svc, _ := newTestAniList(t, prefs, stub.handler())

	series := []domain.Series{
		{ID: "ahead", Title: "Ahead", AniListMediaID: mid(101), LastReadChapter: 12},
		{ID: "behind", Title: "Behind", AniListMediaID: mid(202), LastReadChapter: 10},
		{ID: "fresh", Title: "Fresh", AniListMediaID: mid(303), LastReadChapter: 7},
		{ID: "nolink", Title: "No Link", LastReadChapter: 40},
		{ID: "unread", Title: "Unread", AniListMediaID: mid(404)},
	}

	var calls int
	summary, err := svc.SyncAll(context.Background(), series, func(done, total int, title string) {
		if total != 3 {
			t.Fatalf("expected 3 candidates, got total %d", total)
		}
		calls++
	})
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if calls != 6 {
		t.Fatalf("expected 6 progress calls, got %d", calls)
	}

	// "ahead" (12 > 3) and "fresh" (7 > missing entry = 0) push; "behind" does not.
	if len(stub.mutations) != 2 || stub.mutations[0] != "101=12" || stub.mutations[1] != "303=7" {
		t.Fatalf("unexpected mutations %v", stub.mutations)
	}
	if !strings.HasPrefix(summary, "Updated: 2") {
		t.Fatalf("unexpected summary %q", summary)
	}
	if !strings.Contains(summary, "• Ahead → 12") || !strings.Contains(summary, "• Fresh → 7") {
		t.Fatalf("summary missing titles: %q", summary)
	}
}

func TestSyncAllRequiresToken(t *testing.T) {
	svc, _ := newTestAniList(t, newMemPrefs(), http.NotFoundHandler())
	if _, err := svc.SyncAll(context.Background(), nil, nil); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestSyncAllNoCandidates(t *testing.T) {
	prefs := newMemPrefs()
	prefs.m[keyAniListToken] = "tok"
	svc, _ := newTestAniList(t, prefs, http.NotFoundHandler())

	summary, err := svc.SyncAll(context.Background(), []domain.Series{
		{ID: "nolink", Title: "No Link", LastReadChapter: 5},
	}, nil)
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if summary != "No series with an AniList id to sync." {
		t.Fatalf("unexpected summary %q", summary)
	}
}

func TestSyncAllCollectsFailures(t *testing.T) {
	prefs := newMemPrefs()
	prefs.m[keyAniListToken] = "tok"
	svc, _ := newTestAniList(t, prefs, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "server on fire", http.StatusInternalServerError)
	}))

	summary, err := svc.SyncAll(context.Background(), []domain.Series{
		{ID: "a", Title: "Alpha", AniListMediaID: mid(1), LastReadChapter: 2},
		{ID: "b", Title: "Beta", AniListMediaID: mid(2), LastReadChapter: 3},
	}, nil)
	if err != nil {
		t.Fatalf("one failing series must not fail the batch: %v", err)
	}
	if !strings.Contains(summary, "Failed: 2") || !strings.Contains(summary, "• Alpha") || !strings.Contains(summary, "• Beta") {
		t.Fatalf("unexpected summary %q", summary)
	}
}

func TestBuildSyncSummaryCapsTitles(t *testing.T) {
	var updated []string
	for i := 0; i < syncSummaryMaxTitles+3; i++ {
		updated = append(updated, fmt.Sprintf("Series %02d → %d", i, i))
	}

	summary := buildSyncSummary(updated, nil)
	if !strings.HasPrefix(summary, fmt.Sprintf("Updated: %d", len(updated))) {
		t.Fatalf("unexpected summary head: %q", summary)
	}
	if strings.Count(summary, "• ") != syncSummaryMaxTitles {
		t.Fatalf("expected %d listed titles, got %d", syncSummaryMaxTitles, strings.Count(summary, "• "))
	}
	if !strings.Contains(summary, "… +3 more") {
		t.Fatalf("summary missing overflow marker: %q", summary)
	}
}
