// Package feeds loads the configured feed sources and fetches their raw documents.
package feeds

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source is one configured feed. It is read once at run start and never mutated.
type Source struct {
	URL            string            `json:"url" yaml:"url"`
	Label          string            `json:"label" yaml:"label"`
	UserAgent      string            `json:"user_agent" yaml:"user_agent"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	RequestDelayMs int               `json:"request_delay_ms" yaml:"request_delay_ms"`
}

// RequestDelay is the pause taken before this source is fetched.
func (s Source) RequestDelay() time.Duration {
	if s.RequestDelayMs <= 0 {
		return 0
	}
	return time.Duration(s.RequestDelayMs) * time.Millisecond
}

// Name identifies the source in logs: the label when set, otherwise the URL.
func (s Source) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return s.URL
}

type registry struct {
	Feeds []Source `json:"feeds" yaml:"feeds"`
}

// LoadSources reads the feed list at path. Files ending in .yaml, .yml or
// .json hold a {feeds: [...]} registry; anything else is parsed as plain
// lines of the form "url[,label]".
func LoadSources(path string) ([]Source, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("feeds file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}

	var sources []Source
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
		reg, err := parseRegistry(raw, ext)
		if err != nil {
			return nil, err
		}
		sources = reg.Feeds
	default:
		sources, err = ParseSourceList(raw)
		if err != nil {
			return nil, err
		}
	}

	if len(sources) == 0 {
		return nil, errors.New("feeds file contains no feed entries")
	}

	for i := range sources {
		s := sanitizeSource(sources[i])
		if err := validateSource(s); err != nil {
			return nil, fmt.Errorf("feed[%d]: %w", i, err)
		}
		sources[i] = s
	}
	return sources, nil
}

// ParseSourceList parses newline-delimited "url[,label]" lines. Blank lines
// and lines starting with '#' are ignored.
func ParseSourceList(data []byte) ([]Source, error) {
	var out []Source
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, label, _ := strings.Cut(line, ",")
		out = append(out, Source{URL: strings.TrimSpace(u), Label: strings.TrimSpace(label)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan feeds list: %w", err)
	}
	return out, nil
}

func parseRegistry(data []byte, ext string) (registry, error) {
	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != d.ext {
			continue
		}
		return unmarshalRegistry(d.name, data, d.fn)
	}
	return registry{}, fmt.Errorf("feeds file format %q not recognized (expected YAML or JSON)", ext)
}

type unmarshalFn func([]byte, any) error

func unmarshalRegistry(name string, data []byte, fn unmarshalFn) (registry, error) {
	var reg registry
	if err := fn(data, &reg); err != nil {
		return registry{}, fmt.Errorf("decode %s feeds: %w", name, err)
	}
	return reg, nil
}

func sanitizeSource(s Source) Source {
	s.URL = strings.TrimSpace(s.URL)
	s.Label = strings.TrimSpace(s.Label)
	s.UserAgent = strings.TrimSpace(s.UserAgent)
	if len(s.Headers) > 0 {
		clean := make(map[string]string, len(s.Headers))
		for k, v := range s.Headers {
			if k = strings.TrimSpace(k); k != "" {
				clean[k] = strings.TrimSpace(v)
			}
		}
		s.Headers = clean
	}
	return s
}

func validateSource(s Source) error {
	if s.URL == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", s.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must be http or https", s.URL)
	}
	if s.RequestDelayMs < 0 {
		return fmt.Errorf("request_delay_ms must not be negative for %q", s.URL)
	}
	return nil
}
