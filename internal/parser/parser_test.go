package parser

import (
	"math"
	"strconv"
	"strings"
	"testing"
)

func TestParse_DescriptorShapes(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantApp string
		wantIP  string
	}{
		{
			name:    "full path with connection pair",
			line:    "/usr/bin/firefox/4821/192.168.1.5:443-93.184.216.34:443\t1.0\t2.0",
			wantApp: "firefox",
			wantIP:  "93.184.216.34",
		},
		{
			name:    "path with pid only",
			line:    "/usr/bin/python3/1234\t0.5\t1.2",
			wantApp: "python3",
			wantIP:  "",
		},
		{
			name:    "name slash pid",
			line:    "firefox/12345\t0.5\t1.2",
			wantApp: "firefox",
			wantIP:  "",
		},
		{
			name:    "name dash pid",
			line:    "sshd-991\t0.1\t0.1",
			wantApp: "sshd",
			wantIP:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := Parse(tt.line)
			if !ok {
				t.Fatalf("Parse(%q) skipped, want sample", tt.line)
			}
			if s.App != tt.wantApp {
				t.Errorf("app = %q, want %q", s.App, tt.wantApp)
			}
			if s.RemoteIP != tt.wantIP {
				t.Errorf("remote ip = %q, want %q", s.RemoteIP, tt.wantIP)
			}
		})
	}
}

func TestParse_FirefoxScenario(t *testing.T) {
	s, ok := Parse("/usr/bin/firefox/4821/192.168.1.5:443-93.184.216.34:443\t1.0\t2.0")
	if !ok {
		t.Fatal("expected sample")
	}
	if s.App != "firefox" || s.RemoteIP != "93.184.216.34" {
		t.Fatalf("got app=%q ip=%q", s.App, s.RemoteIP)
	}
	if s.BytesSent != 1024 || s.BytesRecv != 2048 {
		t.Fatalf("got sent=%v recv=%v, want 1024/2048", s.BytesSent, s.BytesRecv)
	}
}

func TestParse_SkipLines(t *testing.T) {
	lines := []string{
		"",
		"   ",
		"Refreshing:",
		"Refreshing: something",
		"onlyonefield",
		"two\tfields",
		"app/1\tnotanumber\t2.0",
		"app/1\t1.0\tnotanumber",
	}
	for _, line := range lines {
		if _, ok := Parse(line); ok {
			t.Errorf("Parse(%q) = sample, want skip", line)
		}
	}
}

func TestParse_KilobyteConversion(t *testing.T) {
	for _, kb := range []float64{0, 0.001, 0.5, 1, 1.234, 999.999, 123456.789} {
		line := "/usr/bin/app/1\t" + formatFloat(kb) + "\t" + formatFloat(kb)
		s, ok := Parse(line)
		if !ok {
			t.Fatalf("Parse(%q) skipped", line)
		}
		want := kb * 1024
		if math.Abs(s.BytesSent-want) > 1e-9 || math.Abs(s.BytesRecv-want) > 1e-9 {
			t.Errorf("kb=%v: got sent=%v recv=%v, want %v", kb, s.BytesSent, s.BytesRecv, want)
		}
	}
}

func TestValidateAppName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234", UnknownApp},
		{"10.0.0.5", UnknownApp},
		{"10.0.0.5:80-", UnknownApp},
		{"unknown", UnknownApp},
		{"TCP", UnknownApp},
		{"UDP", UnknownApp},
		{"", UnknownApp},
		{"firefox", "firefox"},
		{"chrome_sandbox", "chrome_sandbox"},
	}
	for _, tt := range tests {
		if got := validateAppName(tt.in); got != tt.want {
			t.Errorf("validateAppName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractAppName_FallbackScan(t *testing.T) {
	// No numeric token anywhere: reverse scan skips endpoint-looking tokens.
	got := extractAppName("/opt/stuff/10.0.0.1:443-10.0.0.2:80/curl")
	if got != "curl" {
		t.Errorf("got %q, want curl", got)
	}
}

func TestExtractAppName_EmptyPredecessor(t *testing.T) {
	// A doubled slash puts an empty token right before the pid; the scan
	// must recover the last real path component instead.
	tests := []struct {
		desc string
		want string
	}{
		{"/usr//123", "usr"},
		{"/usr/bin//4821", "bin"},
	}
	for _, tt := range tests {
		if got := extractAppName(tt.desc); got != tt.want {
			t.Errorf("extractAppName(%q) = %q, want %q", tt.desc, got, tt.want)
		}
	}
}

func TestExtractRemoteIP(t *testing.T) {
	tests := []struct {
		desc string
		want string
	}{
		{"/usr/bin/x/1/192.168.1.5:443-93.184.216.34:443", "93.184.216.34"},
		{"/usr/bin/x/1/10.0.0.7", "10.0.0.7"},
		{"/usr/bin/x/1", ""},
	}
	for _, tt := range tests {
		if got := extractRemoteIP(tt.desc); got != tt.want {
			t.Errorf("extractRemoteIP(%q) = %q, want %q", tt.desc, got, tt.want)
		}
	}
}

func TestParse_MalformedDescriptorsNeverPanic(t *testing.T) {
	descs := []string{
		"////",
		"///0",
		"-",
		":",
		"a-b-c-d",
		strings.Repeat("/1.2.3.4:5-", 10),
	}
	for _, d := range descs {
		s, ok := Parse(d + "\t1\t1")
		if ok && s.App == "" {
			t.Errorf("descriptor %q produced empty app name", d)
		}
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
