package feeds

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return file
}

func TestLoadSourcesPlainList(t *testing.T) {
	file := writeFile(t, "feeds.txt", `
# weekly digest sources
https://example.com/rss.xml
https://blog.example.org/feed ,  Example Blog  

https://news.example.net/atom.xml,News
`)

	sources, err := LoadSources(file)
	if err != nil {
		t.Fatalf("LoadSources returned error: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}

	want := []Source{
		{URL: "https://example.com/rss.xml"},
		{URL: "https://blog.example.org/feed", Label: "Example Blog"},
		{URL: "https://news.example.net/atom.xml", Label: "News"},
	}
	for i, w := range want {
		if sources[i].URL != w.URL || sources[i].Label != w.Label {
			t.Fatalf("source[%d] = %+v, want %+v", i, sources[i], w)
		}
	}
	if sources[0].Name() != "https://example.com/rss.xml" || sources[1].Name() != "Example Blog" {
		t.Fatalf("unexpected names %q %q", sources[0].Name(), sources[1].Name())
	}
}

func TestLoadSourcesYAML(t *testing.T) {
	file := writeFile(t, "feeds.yaml", `
feeds:
  - url: https://example.com/rss.xml
    label: Example
    user_agent: digest-bot/1.0
    request_delay_ms: 250
    headers:
      Accept-Language: en
`)

	sources, err := LoadSources(file)
	if err != nil {
		t.Fatalf("LoadSources returned error: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(sources))
	}
	s := sources[0]
	if s.Label != "Example" || s.UserAgent != "digest-bot/1.0" || s.Headers["Accept-Language"] != "en" {
		t.Fatalf("unexpected source %+v", s)
	}
	if s.RequestDelay() != 250*time.Millisecond {
		t.Fatalf("unexpected delay %v", s.RequestDelay())
	}
}

func TestLoadSourcesJSON(t *testing.T) {
	file := writeFile(t, "feeds.json", `{"feeds":[{"url":"https://example.com/feed","label":" Ex "}]}`)

	sources, err := LoadSources(file)
	if err != nil {
		t.Fatalf("LoadSources returned error: %v", err)
	}
	if sources[0].Label != "Ex" {
		t.Fatalf("label not trimmed: %q", sources[0].Label)
	}
}

func TestLoadSourcesErrors(t *testing.T) {
	cases := map[string]struct {
		name    string
		content string
	}{
		"empty list":   {"feeds.txt", "\n# nothing\n"},
		"bad scheme":   {"feeds.txt", "ftp://example.com/feed\n"},
		"missing url":  {"feeds.yaml", "feeds:\n  - label: nope\n"},
		"broken yaml":  {"feeds.yaml", "feeds: [\n"},
		"broken json":  {"feeds.json", "{"},
		"negative gap": {"feeds.yaml", "feeds:\n  - url: https://e.com\n    request_delay_ms: -5\n"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			file := writeFile(t, tc.name, tc.content)
			if _, err := LoadSources(file); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	if _, err := LoadSources(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := LoadSources(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
