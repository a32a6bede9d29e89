package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/redsinal/questlog/internal/config"
	"github.com/redsinal/questlog/internal/domain"
	"github.com/redsinal/questlog/internal/ports"
	"github.com/rs/zerolog"
)

var (
	ErrNotAuthenticated = errors.New("anilist not connected")
	// ErrMissingClientSecret means the build/runtime configuration never
	// provided the OAuth application secret. Fatal for the login flow.
	ErrMissingClientSecret = errors.New("anilist client secret is not configured")
)

// Token and progress responses are pattern-matched rather than fully parsed:
// only one field of each body matters and AniList is free to add others.
var (
	reAccessToken = regexp.MustCompile(`"access_token"\s*:\s*"([^"]+)"`)
	reProgress    = regexp.MustCompile(`"progress"\s*:\s*(\d+)`)
)

// AniListService drives the OAuth login flow and the reading-progress sync
// against the AniList GraphQL API. Its state machine is the presence of the
// persisted access token: no token means unauthenticated.
type AniListService struct {
	logger zerolog.Logger
	cfg    config.AniList
	prefs  ports.PreferencesRepository
	client *http.Client
}

func NewAniListService(logger zerolog.Logger, cfg config.AniList, prefs ports.PreferencesRepository) *AniListService {
	return &AniListService{
		logger: logger,
		cfg:    cfg,
		prefs:  prefs,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// AuthURL is the external authorization page the user is sent to.
func (s *AniListService) AuthURL() string {
	q := url.Values{}
	q.Set("client_id", s.cfg.ClientID)
	q.Set("redirect_uri", s.cfg.RedirectURI)
	q.Set("response_type", "code")
	return strings.TrimRight(s.cfg.AuthBaseURL, "/") + "/oauth/authorize?" + q.Encode()
}

// Authenticated reports whether a token is persisted.
func (s *AniListService) Authenticated(ctx context.Context) bool {
	_, err := s.Token(ctx)
	return err == nil
}

func (s *AniListService) Token(ctx context.Context) (string, error) {
	token, err := s.prefs.Get(ctx, keyAniListToken)
	if errors.Is(err, ports.ErrNotFound) || strings.TrimSpace(token) == "" {
		return "", ErrNotAuthenticated
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// HandleRedirect consumes the OAuth callback query. An error parameter wins
// over everything; otherwise the code is exchanged and the token persisted.
func (s *AniListService) HandleRedirect(ctx context.Context, query url.Values) (string, error) {
	if e := strings.TrimSpace(query.Get("error")); e != "" {
		desc := strings.TrimSpace(query.Get("error_description"))
		return "", fmt.Errorf("anilist login failed: %s", strings.TrimSpace(e+" "+desc))
	}
	code := strings.TrimSpace(query.Get("code"))
	if code == "" {
		return "", errors.New("anilist callback carried no authorization code")
	}
	if err := s.ExchangeCode(ctx, code); err != nil {
		return "", err
	}
	return "AniList connected.", nil
}

// ExchangeCode trades the authorization code for an access token and persists
// it. The exchange needs the pre-shared client secret; a non-2xx status or a
// body without a token is a fatal failure of the login, reported with the raw
// response so the user can see what the server said.
func (s *AniListService) ExchangeCode(ctx context.Context, code string) error {
	if strings.TrimSpace(s.cfg.ClientSecret) == "" {
		return ErrMissingClientSecret
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", s.cfg.ClientID)
	form.Set("client_secret", s.cfg.ClientSecret)
	form.Set("redirect_uri", s.cfg.RedirectURI)
	form.Set("code", code)

	endpoint := strings.TrimRight(s.cfg.AuthBaseURL, "/") + "/oauth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	token := ""
	if m := reAccessToken.FindSubmatch(body); m != nil {
		token = string(m[1])
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || token == "" {
		return fmt.Errorf("anilist token exchange failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	if err := s.prefs.Put(ctx, keyAniListToken, token); err != nil {
		return err
	}
	s.logger.Info().Msg("anilist connected")
	return nil
}

// Logout clears the persisted token.
func (s *AniListService) Logout(ctx context.Context) error {
	return s.prefs.Delete(ctx, keyAniListToken)
}

// Progress reads the remote reading progress for a media id. A missing entry
// or an unparseable body counts as 0 — never as an error.
func (s *AniListService) Progress(ctx context.Context, token string, mediaID int) (int, error) {
	const q = `query ($mediaId: Int) {
  Media(id: $mediaId) {
    mediaListEntry {
      progress
    }
  }
}`
	body, err := s.graphql(ctx, token, q, map[string]any{"mediaId": mediaID})
	if err != nil {
		return 0, err
	}
	if m := reProgress.FindSubmatch(body); m != nil {
		if n, err := strconv.Atoi(string(m[1])); err == nil {
			return n, nil
		}
	}
	return 0, nil
}

// SetProgress pushes a new reading progress for a media id.
func (s *AniListService) SetProgress(ctx context.Context, token string, mediaID, progress int) error {
	const m = `mutation ($mediaId: Int, $progress: Int) {
  SaveMediaListEntry(mediaId: $mediaId, progress: $progress) {
    id
    progress
  }
}`
	_, err := s.graphql(ctx, token, m, map[string]any{"mediaId": mediaID, "progress": progress})
	return err
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

func (s *AniListService) graphql(ctx context.Context, token, query string, variables map[string]any) ([]byte, error) {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.GraphQLEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("anilist graphql HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// SyncAll reconciles local reading progress with AniList for every candidate:
// a series with a media id and at least one read chapter. Candidates are
// processed strictly in list order, one at a time; local progress is pushed
// only when it is ahead of the remote value, and one failing series never
// stops the rest of the batch.
func (s *AniListService) SyncAll(ctx context.Context, series []domain.Series, progress ProgressFunc) (string, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return "", err
	}

	var candidates []domain.Series
	for _, rec := range series {
		if rec.AniListMediaID != nil && rec.LastReadChapter > 0 {
			candidates = append(candidates, rec)
		}
	}

	total := len(candidates)
	done := 0
	var updated, failed []string

	for _, rec := range candidates {
		if progress != nil {
			progress(done, total, rec.Title)
		}

		pushed, err := s.syncOne(ctx, token, rec)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Str("series_id", rec.ID).Msg("anilist sync failed for series")
			failed = append(failed, rec.Title)
		case pushed:
			updated = append(updated, fmt.Sprintf("%s → %d", rec.Title, rec.LastReadChapter))
		}

		done++
		if progress != nil {
			progress(done, total, rec.Title)
		}
	}

	if total == 0 {
		return "No series with an AniList id to sync.", nil
	}
	return buildSyncSummary(updated, failed), nil
}

// syncOne pushes local progress when ahead of the remote value. pushed is
// false when the remote is already at or past the local chapter.
func (s *AniListService) syncOne(ctx context.Context, token string, rec domain.Series) (pushed bool, err error) {
	remote, err := s.Progress(ctx, token, *rec.AniListMediaID)
	if err != nil {
		return false, err
	}
	if rec.LastReadChapter <= remote {
		return false, nil
	}
	if err := s.SetProgress(ctx, token, *rec.AniListMediaID, rec.LastReadChapter); err != nil {
		return false, err
	}
	return true, nil
}

const syncSummaryMaxTitles = 12

func buildSyncSummary(updated, failed []string) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("Updated: %d", len(updated)))
	if len(updated) == 0 {
		lines = append(lines, "No series needed an update.")
	}
	for i, title := range updated {
		if i == syncSummaryMaxTitles {
			lines = append(lines, fmt.Sprintf("… +%d more", len(updated)-syncSummaryMaxTitles))
			break
		}
		lines = append(lines, "• "+title)
	}

	if len(failed) > 0 {
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("Failed: %d", len(failed)))
		for i, title := range failed {
			if i == syncSummaryMaxTitles {
				lines = append(lines, fmt.Sprintf("… +%d more", len(failed)-syncSummaryMaxTitles))
				break
			}
			lines = append(lines, "• "+title)
		}
	}

	return strings.Join(lines, "\n")
}
