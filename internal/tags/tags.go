/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package tags holds the named tag packs used by search-driven
// sessions. Each pack is a vocabulary of title qualifiers that marks a
// track as belonging to the style.
package tags

import (
	"sort"
	"strings"
)

var profiles = map[string][]string{
	"remix":  {"remix", "bootleg", "rework", "vip", "festival mix", "club mix", "extended mix", "edit", "mix"},
	"mashup": {"mashup", "blend", "bootleg mashup", "megamix", "transition mix", "multi-track mix", "dj mix", "live mashup"},
	"lofi":   {"lofi", "chillhop", "study beats", "jazzy lofi", "ambient lofi", "relax beats", "sleep lofi", "aesthetic lofi"},
	"slowed": {"slowed", "reverb", "slowed + reverb", "slowed edit", "chopped and screwed", "deep reverb", "dreamy slowed"},
}

// DefaultProfile is used when a session names no tag pack.
const DefaultProfile = "remix"

// Profile returns the tag pack for a name. Unknown names report false.
func Profile(name string) ([]string, bool) {
	tags, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	out := make([]string, len(tags))
	copy(out, tags)
	return out, true
}

// Names lists the available tag packs, sorted.
func Names() []string {
	out := make([]string, 0, len(profiles))
	for name := range profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
