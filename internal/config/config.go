package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AniList holds the OAuth application settings. The client secret is supplied
// out-of-band via the environment and must never be checked in; a blank secret
// is rejected at the first token exchange, not at startup.
type AniList struct {
	ClientID        string
	ClientSecret    string
	RedirectURI     string
	AuthBaseURL     string
	GraphQLEndpoint string
}

type Config struct {
	Addr   string
	DBPath string

	// FetchTimeout bounds every outbound page fetch (connect + read).
	FetchTimeout time.Duration

	// ScanInterval enables the background scan loop when > 0.
	ScanInterval time.Duration

	AniList AniList
}

func Default() Config {
	// Optional .env next to the binary; missing file is fine.
	_ = godotenv.Load()

	return Config{
		Addr:         envOr("QUESTLOG_ADDR", "127.0.0.1:8080"),
		DBPath:       envOr("QUESTLOG_DB_PATH", "questlog.db"),
		FetchTimeout: envDurationOr("QUESTLOG_FETCH_TIMEOUT", 20*time.Second),
		ScanInterval: envDurationOr("QUESTLOG_SCAN_INTERVAL", 0),
		AniList: AniList{
			ClientID:        envOr("QUESTLOG_ANILIST_CLIENT_ID", "35231"),
			ClientSecret:    os.Getenv("QUESTLOG_ANILIST_CLIENT_SECRET"),
			RedirectURI:     envOr("QUESTLOG_ANILIST_REDIRECT_URI", "http://127.0.0.1:8080/api/v1/anilist/callback"),
			AuthBaseURL:     envOr("QUESTLOG_ANILIST_AUTH_URL", "https://anilist.co/api/v2"),
			GraphQLEndpoint: envOr("QUESTLOG_ANILIST_GRAPHQL_URL", "https://graphql.anilist.co"),
		},
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
