/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package moods maps mood names to curated playlist references, with
// per-language variants. A built-in catalog ships with the binary and
// can be replaced by a YAML file at startup.
package moods

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed moods.yaml
var defaultCatalog []byte

// Language variants a bucket may carry. LangMix is the cross-language
// fallback and doubles as the default.
const (
	LangHindi   = "hi"
	LangEnglish = "en"
	LangMix     = "mix"
)

// Bucket holds the playlist references for one mood.
type Bucket struct {
	Hi  []string `yaml:"hi"`
	En  []string `yaml:"en"`
	Mix []string `yaml:"mix"`
}

type catalogFile struct {
	Moods map[string]Bucket `yaml:"moods"`
}

// Catalog is an immutable mood lookup table.
type Catalog struct {
	buckets map[string]Bucket
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from a YAML file. An empty path returns the
// built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mood catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse mood catalog: %w", err)
	}
	if len(file.Moods) == 0 {
		return nil, fmt.Errorf("mood catalog has no moods")
	}
	buckets := make(map[string]Bucket, len(file.Moods))
	for name, b := range file.Moods {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if len(b.Hi)+len(b.En)+len(b.Mix) == 0 {
			return nil, fmt.Errorf("mood %q has no playlists", name)
		}
		buckets[key] = b
	}
	return &Catalog{buckets: buckets}, nil
}

// Moods returns the catalog's mood names, sorted.
func (c *Catalog) Moods() []string {
	out := make([]string, 0, len(c.buckets))
	for name := range c.buckets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Has reports whether the catalog knows the mood.
func (c *Catalog) Has(mood string) bool {
	_, ok := c.buckets[strings.ToLower(strings.TrimSpace(mood))]
	return ok
}

// Playlists returns the playlist references for a mood in the given
// language, falling back to the mix variant when the language has no
// entry. Unknown moods return nil.
func (c *Catalog) Playlists(mood, language string) []string {
	b, ok := c.buckets[strings.ToLower(strings.TrimSpace(mood))]
	if !ok {
		return nil
	}
	var refs []string
	switch strings.ToLower(strings.TrimSpace(language)) {
	case LangHindi:
		refs = b.Hi
	case LangEnglish:
		refs = b.En
	default:
		refs = b.Mix
	}
	if len(refs) == 0 {
		refs = b.Mix
	}
	return refs
}
