// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

// Package feeds fetches and parses public threat-intelligence IP feeds.
//
// Parsers are deliberately best-effort: feed formats drift, so malformed
// lines are skipped silently and unparseable input yields an empty result
// rather than an error.
package feeds

import (
	"bytes"
	"encoding/csv"
	"strings"
)

// Parser extracts candidate IPv4 addresses from raw feed bytes. Results are
// order-preserving and may contain duplicates. Parsers never fail: malformed
// input yields nil.
type Parser interface {
	// Parse returns the syntactically valid IPv4 addresses found in raw.
	Parse(raw []byte) []string

	// Name returns the parser identifier used in feed configuration.
	Name() string
}

// Parser identifiers accepted in feed configuration.
const (
	ParserLineIPs = "text_ips"
	ParserCSV     = "csv_ips"
)

// ParserByName returns the parser registered under name, or nil if unknown.
func ParserByName(name string) Parser {
	switch name {
	case ParserLineIPs:
		return LineParser{}
	case ParserCSV:
		return CSVParser{}
	}
	return nil
}

// ValidIPv4 reports whether s is a dotted-quad IPv4 address: four
// dot-separated octets, each 0-255, at most three digits.
func ValidIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if len(p) == 0 || len(p) > 3 {
			return false
		}
		// Digits only: strconv would accept a leading sign.
		n := 0
		for i := 0; i < len(p); i++ {
			if p[i] < '0' || p[i] > '9' {
				return false
			}
			n = n*10 + int(p[i]-'0')
		}
		if n > 255 {
			return false
		}
	}
	return true
}

// LineParser handles newline-delimited feeds: one IP per line, blank lines
// and lines starting with '#' skipped, optional trailing ":port" stripped.
type LineParser struct{}

// Name implements Parser.
func (LineParser) Name() string { return ParserLineIPs }

// Parse implements Parser.
func (LineParser) Parse(raw []byte) []string {
	var out []string
	for _, line := range strings.Split(string(raw), "\n") {
		l := strings.TrimSpace(line)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		ip, _, _ := strings.Cut(l, ":")
		if ValidIPv4(ip) {
			out = append(out, ip)
		}
	}
	return out
}

// csvIPColumns is the ordered list of header names tried when locating the
// destination-IP column of a tabular feed.
var csvIPColumns = []string{"dst_ip", "ip"}

// CSVParser handles delimited feeds with a header row (FeodoTracker style).
// The destination-IP column is located by trying csvIPColumns in order.
type CSVParser struct{}

// Name implements Parser.
func (CSVParser) Name() string { return ParserCSV }

// Parse implements Parser.
func (CSVParser) Parse(raw []byte) []string {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.Comment = '#'
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil || len(records) < 2 {
		return nil
	}

	col := -1
	header := records[0]
	for _, want := range csvIPColumns {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), want) {
				col = i
				break
			}
		}
		if col >= 0 {
			break
		}
	}
	if col < 0 {
		return nil
	}

	var out []string
	for _, rec := range records[1:] {
		if col >= len(rec) {
			continue
		}
		ip := strings.TrimSpace(rec[col])
		if ValidIPv4(ip) {
			out = append(out, ip)
		}
	}
	return out
}
