// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

package feeds

import (
	"fmt"

	"github.com/threatcanvas/threatcanvas/internal/models"
)

// Feed describes one configured upstream threat-intelligence source. Every
// IP it produces is stamped with its Name as source and its Risk category.
type Feed struct {
	Name   string
	URL    string
	Parser Parser
	Risk   string
}

// Definition is the configuration-level description of a feed before parser
// resolution.
type Definition struct {
	Name   string `koanf:"name"`
	URL    string `koanf:"url"`
	Parser string `koanf:"parser"`
	Risk   string `koanf:"risk"`
}

// Build resolves a slice of feed definitions into Feeds, validating parser
// and risk names.
func Build(defs []Definition) ([]Feed, error) {
	out := make([]Feed, 0, len(defs))
	for _, d := range defs {
		p := ParserByName(d.Parser)
		if p == nil {
			return nil, fmt.Errorf("feed %q: unknown parser %q", d.Name, d.Parser)
		}
		if !models.ValidRisk(d.Risk) {
			return nil, fmt.Errorf("feed %q: unknown risk category %q", d.Name, d.Risk)
		}
		if d.Name == "" || d.URL == "" {
			return nil, fmt.Errorf("feed definition missing name or url: %+v", d)
		}
		out = append(out, Feed{Name: d.Name, URL: d.URL, Parser: p, Risk: d.Risk})
	}
	return out, nil
}

// DefaultDefinitions returns the built-in public feed set. None of these
// require an API key.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Name:   "EmergingThreats",
			URL:    "https://rules.emergingthreats.net/blockrules/compromised-ips.txt",
			Parser: ParserLineIPs,
			Risk:   models.RiskCompromisedHost,
		},
		{
			Name:   "Blocklist.de",
			URL:    "https://lists.blocklist.de/lists/all.txt",
			Parser: ParserLineIPs,
			Risk:   models.RiskAbusiveSource,
		},
		{
			Name:   "FeodoTracker",
			URL:    "https://feodotracker.abuse.ch/downloads/ipblocklist.csv",
			Parser: ParserCSV,
			Risk:   models.RiskBotnetC2,
		},
	}
}
