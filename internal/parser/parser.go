// Package parser turns raw nethogs trace lines into traffic samples.
//
// The nethogs "-t" output format is unversioned and must be parsed
// defensively. Observed descriptor shapes:
//
//	/usr/bin/firefox/12345/192.168.1.5:443-10.0.0.1:54321	1.234	5.678
//	/usr/bin/python3/1234	0.5	1.2
//	firefox/12345	0.5	1.2
//	unknown TCP/0/0	0	0
//
// plus periodic "Refreshing:" marker lines, which are skipped.
package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// UnknownApp is the sentinel name assigned to traffic that cannot be
// attributed to a process.
const UnknownApp = "unknown"

// Sample is one parsed nethogs line. Byte counts are floats because nethogs
// reports fractional kilobytes; rounding happens only at persistence.
type Sample struct {
	App       string
	RemoteIP  string
	BytesSent float64
	BytesRecv float64
}

var (
	connPairRe   = regexp.MustCompile(`(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}):\d+-(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}):\d+`)
	singleIPRe   = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)
	leadingIPRe  = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)
	ipPortDashRe = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:\d+-`)
)

// Parse parses a single nethogs trace line. The second return value is false
// for empty lines, refresh markers, and lines whose byte fields do not parse.
func Parse(line string) (Sample, bool) {
	line = strings.TrimSpace(line)

	if line == "" || strings.HasPrefix(line, "Refreshing") {
		return Sample{}, false
	}

	parts := strings.Split(line, "\t")
	if len(parts) < 3 {
		return Sample{}, false
	}

	sent, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Sample{}, false
	}
	recv, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return Sample{}, false
	}

	desc := parts[0]
	return Sample{
		App:       validateAppName(extractAppName(desc)),
		RemoteIP:  extractRemoteIP(desc),
		BytesSent: sent * 1024, // KB -> bytes
		BytesRecv: recv * 1024,
	}, true
}

// extractAppName pulls the program name out of a nethogs descriptor.
// For path-style descriptors the name is the token immediately before the
// PID (first purely numeric token); if no numeric token exists, the last
// token that is neither numeric nor endpoint-like wins.
func extractAppName(desc string) string {
	if !strings.Contains(desc, "/") {
		// Simple format: binary/PID or binary-PID.
		name := desc
		if i := strings.IndexByte(name, '/'); i >= 0 {
			name = name[:i]
		}
		if i := strings.IndexByte(name, '-'); i >= 0 {
			name = name[:i]
		}
		return name
	}

	tokens := strings.Split(desc, "/")
	for i, tok := range tokens {
		if isDigits(tok) {
			// An empty predecessor (doubled slash) falls through to
			// the scan below.
			if i > 0 && tokens[i-1] != "" {
				return tokens[i-1]
			}
			break
		}
	}

	// Fallback: last non-numeric token that does not look like an endpoint.
	for i := len(tokens) - 1; i >= 0; i-- {
		tok := tokens[i]
		if tok == "" || isDigits(tok) {
			continue
		}
		if strings.ContainsAny(tok, ":-") {
			continue
		}
		return tok
	}
	return ""
}

// extractRemoteIP returns the remote side of a local:port-remote:port
// connection pair, or any single dotted quad, or "".
func extractRemoteIP(desc string) string {
	if m := connPairRe.FindStringSubmatch(desc); m != nil {
		return m[2]
	}
	return singleIPRe.FindString(desc)
}

// validateAppName maps PIDs, bare addresses, and reserved tokens to the
// unknown sentinel; anything else passes through unchanged.
func validateAppName(name string) string {
	name = strings.TrimSpace(name)
	switch name {
	case "", UnknownApp, "TCP", "UDP":
		return UnknownApp
	}
	if isDigits(name) {
		return UnknownApp
	}
	if leadingIPRe.MatchString(name) || ipPortDashRe.MatchString(name) {
		return UnknownApp
	}
	return name
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
