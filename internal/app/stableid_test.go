package app

import (
	"strings"
	"testing"
)

func TestStableSeriesIDSlug(t *testing.T) {
	got := StableSeriesID("https://asuracomic.net/series/nano-machine")
	if got != "nano-machine" {
		t.Fatalf("expected nano-machine, got %q", got)
	}
}

func TestStableSeriesIDTrailingSlash(t *testing.T) {
	a := StableSeriesID("https://asuracomic.net/series/nano-machine")
	b := StableSeriesID("https://asuracomic.net/series/nano-machine/")
	if a != b {
		t.Fatalf("trailing slash changed the id: %q vs %q", a, b)
	}
}

func TestStableSeriesIDIgnoresTrailingPath(t *testing.T) {
	got := StableSeriesID("https://asuracomic.net/series/nano-machine/chapter/12")
	if got != "nano-machine" {
		t.Fatalf("expected nano-machine, got %q", got)
	}
}

func TestStableSeriesIDFoldsAccents(t *testing.T) {
	got := StableSeriesID("https://e.x/series/héros-légendaire")
	if got != "heros-legendaire" {
		t.Fatalf("unexpected folded id %q", got)
	}
}

func TestStableSeriesIDHashFallback(t *testing.T) {
	a := StableSeriesID("https://other.site/title/12345")
	if !strings.HasPrefix(a, "s_") {
		t.Fatalf("expected hash fallback, got %q", a)
	}
	b := StableSeriesID("https://other.site/title/12345/")
	if a != b {
		t.Fatalf("fallback id not stable across trailing slash: %q vs %q", a, b)
	}
	c := StableSeriesID("https://other.site/title/99999")
	if a == c {
		t.Fatalf("distinct urls collided: %q", a)
	}
}
