package utils

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestParseHeaderArgs(t *testing.T) {
	got := ParseHeaderArgs([]string{"Authorization: Bearer x:y", "broken", " X-Test :1", ": empty"})
	if len(got) != 2 {
		t.Fatalf("got %d headers, want 2: %v", len(got), got)
	}
	if got["Authorization"] != "Bearer x:y" {
		t.Errorf("Authorization = %q", got["Authorization"])
	}
	if got["X-Test"] != "1" {
		t.Errorf("X-Test = %q", got["X-Test"])
	}
}

func TestResolveUserAgent(t *testing.T) {
	if got := ResolveUserAgent(""); got != ToolUserAgent {
		t.Errorf("empty = %q", got)
	}
	if got := ResolveUserAgent("custom/2"); got != "custom/2" {
		t.Errorf("custom = %q", got)
	}
	random := ResolveUserAgent("randomize")
	found := false
	for _, ua := range userAgents {
		if ua == random {
			found = true
		}
	}
	if !found {
		t.Errorf("randomize returned %q, not from the list", random)
	}
}

func TestCleanTempDirs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"linkcheck-a", "linkcheck-b", "other"} {
		if err := os.MkdirAll(filepath.Join(dir, name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "linkcheck-file"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	n, err := CleanTempDirs(dir)
	if err != nil {
		t.Fatalf("CleanTempDirs: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
	for _, name := range []string{"other", "linkcheck-file"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s should remain: %v", name, err)
		}
	}
	if n, err := CleanTempDirs(filepath.Join(dir, "missing")); err != nil || n != 0 {
		t.Errorf("missing dir: n=%d err=%v", n, err)
	}
}

func TestHTTPClientSetsHeaders(t *testing.T) {
	var gotUA, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotHeader = r.Header.Get("X-Token")
	}))
	defer srv.Close()

	client := NewHTTPClient(HTTPClientConfig{
		UserAgent: "tester/1",
		Headers:   map[string]string{"X-Token": "abc"},
		RateLimit: 100,
	})
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if gotUA != "tester/1" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotHeader != "abc" {
		t.Errorf("X-Token = %q", gotHeader)
	}
}
