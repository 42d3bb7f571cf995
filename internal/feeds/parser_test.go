// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

package feeds

import (
	"reflect"
	"testing"
)

func TestValidIPv4(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"plain address", "192.168.1.1", true},
		{"all zeros", "0.0.0.0", true},
		{"broadcast", "255.255.255.255", true},
		{"octet overflow", "256.1.1.1", false},
		{"three octets", "10.0.0", false},
		{"five octets", "10.0.0.1.2", false},
		{"empty octet", "10..0.1", false},
		{"four digit octet", "1000.0.0.1", false},
		{"letters", "a.b.c.d", false},
		{"empty", "", false},
		{"ipv6", "::1", false},
		{"negative", "-1.0.0.1", false},
		{"signed last octet", "1.2.3.+4", false},
		{"signed middle octet", "1.+2.3.4", false},
		{"signed zero octet", "-0.1.2.3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidIPv4(tt.input); got != tt.want {
				t.Errorf("ValidIPv4(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLineParser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "plain list",
			input: "1.2.3.4\n5.6.7.8\n",
			want:  []string{"1.2.3.4", "5.6.7.8"},
		},
		{
			name:  "comments and blanks skipped",
			input: "# header\n\n1.2.3.4\n   \n# trailer\n5.6.7.8",
			want:  []string{"1.2.3.4", "5.6.7.8"},
		},
		{
			name:  "port suffix stripped",
			input: "1.2.3.4:8080\n5.6.7.8:443\n",
			want:  []string{"1.2.3.4", "5.6.7.8"},
		},
		{
			name:  "malformed lines skipped",
			input: "1.2.3.4\nnot-an-ip\n300.300.300.300\n10.0.0.0/8\n5.6.7.8\n",
			want:  []string{"1.2.3.4", "5.6.7.8"},
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  1.2.3.4  \n\t5.6.7.8\n",
			want:  []string{"1.2.3.4", "5.6.7.8"},
		},
		{
			name:  "duplicates preserved",
			input: "1.2.3.4\n1.2.3.4\n",
			want:  []string{"1.2.3.4", "1.2.3.4"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "garbage only",
			input: "%%%\x00\xff\nnot ips at all\n",
			want:  nil,
		},
	}

	p := LineParser{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse([]byte(tt.input))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCSVParser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "dst_ip column",
			input: "first_seen,dst_ip,dst_port\n2026-01-01,1.2.3.4,447\n2026-01-02,5.6.7.8,443\n",
			want:  []string{"1.2.3.4", "5.6.7.8"},
		},
		{
			name:  "ip column fallback",
			input: "ip,count\n1.2.3.4,10\n",
			want:  []string{"1.2.3.4"},
		},
		{
			name:  "dst_ip preferred over ip",
			input: "ip,dst_ip\n9.9.9.9,1.2.3.4\n",
			want:  []string{"1.2.3.4"},
		},
		{
			name:  "comment lines skipped",
			input: "# Feodo Tracker\ndst_ip,port\n1.2.3.4,447\n",
			want:  []string{"1.2.3.4"},
		},
		{
			name:  "invalid values skipped",
			input: "dst_ip\nnot-an-ip\n1.2.3.4\n999.1.1.1\n",
			want:  []string{"1.2.3.4"},
		},
		{
			name:  "short rows skipped",
			input: "a,b,dst_ip\n1,2\nx,y,1.2.3.4\n",
			want:  []string{"1.2.3.4"},
		},
		{
			name:  "no ip column",
			input: "foo,bar\n1,2\n",
			want:  nil,
		},
		{
			name:  "header only",
			input: "dst_ip,port\n",
			want:  nil,
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	p := CSVParser{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse([]byte(tt.input))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParserByName(t *testing.T) {
	t.Parallel()

	if p := ParserByName(ParserLineIPs); p == nil || p.Name() != ParserLineIPs {
		t.Errorf("ParserByName(%q) = %v", ParserLineIPs, p)
	}
	if p := ParserByName(ParserCSV); p == nil || p.Name() != ParserCSV {
		t.Errorf("ParserByName(%q) = %v", ParserCSV, p)
	}
	if p := ParserByName("bogus"); p != nil {
		t.Errorf("ParserByName(bogus) = %v, want nil", p)
	}
}
