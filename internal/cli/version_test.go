package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestWriteVersion(t *testing.T) {
	info := BuildInfo{Version: "1.2.0", Commit: "abc123", Date: "2026-01-02", BuiltBy: "unknown", Go: "go1.24.5"}

	tests := []struct {
		name string
		opts VersionOptions
		want []string
		not  []string
	}{
		{
			name: "short",
			opts: VersionOptions{Short: true},
			want: []string{"1.2.0\n"},
			not:  []string{"engine"},
		},
		{
			name: "text without engine",
			opts: VersionOptions{Format: "text"},
			want: []string{"simtray 1.2.0 (abc123, 2026-01-02)", "engine release: not installed"},
			not:  []string{"built by"},
		},
		{
			name: "yaml",
			opts: VersionOptions{Format: "yaml"},
			want: []string{"version: 1.2.0", "go_version: go1.24.5"},
			not:  []string{"engine_release"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			opts := tt.opts
			if err := writeVersion(&buf, &opts, info); err != nil {
				t.Fatalf("writeVersion() error = %v", err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(out, n) {
					t.Errorf("output unexpectedly contains %q:\n%s", n, out)
				}
			}
		})
	}
}

func TestWriteVersion_JSONIncludesEngine(t *testing.T) {
	info := BuildInfo{Version: "1.2.0", Engine: "101"}
	var buf bytes.Buffer
	if err := writeVersion(&buf, &VersionOptions{Format: "json"}, info); err != nil {
		t.Fatalf("writeVersion() error = %v", err)
	}
	var got BuildInfo
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Engine != "101" {
		t.Errorf("Engine = %q, want %q", got.Engine, "101")
	}
}

func TestWriteVersion_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := writeVersion(&buf, &VersionOptions{Format: "xml"}, BuildInfo{}); err == nil {
		t.Error("expected error for unknown format")
	}
}
