package release

import (
	"errors"
	"strings"
	"testing"
)

const sampleDocument = `{
  "distribution": {
    "forge": {
      "darwin": {"x64": "https://cdn.example.com/forge/forge-darwin-x64.tar.gz"},
      "linux": {"src": "https://cdn.example.com/forge/forge-linux.tar.gz"},
      "win32": {"x32": "https://cdn.example.com/forge/forge-win32.zip"},
      "unknown": {"src": "https://cdn.example.com/forge/forge-src.tar.gz"}
    },
    "other": {}
  },
  "version": "2.4.1"
}`

func TestParse(t *testing.T) {
	info, err := Parse([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(info.Distribution) != 2 {
		t.Errorf("len(Distribution) = %d, want 2", len(info.Distribution))
	}
	if len(info.Distribution["forge"]) != 4 {
		t.Errorf("forge platforms = %v, want 4 entries", info.Distribution["forge"])
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not_json", data: "<html>maintenance</html>"},
		{name: "truncated", data: `{"distribution": {"forge":`},
		{name: "missing_distribution", data: `{"version": "1.0"}`},
		{name: "wrong_shape", data: `{"distribution": {"forge": ["a", "b"]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestSource(t *testing.T) {
	info, err := Parse([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		name     string
		product  string
		platform string
		arch     string
		want     string
		wantErr  string
	}{
		{
			name:     "darwin",
			product:  "forge",
			platform: "darwin",
			arch:     "x64",
			want:     "https://cdn.example.com/forge/forge-darwin-x64.tar.gz",
		},
		{
			name:     "linux",
			product:  "forge",
			platform: "linux",
			arch:     "src",
			want:     "https://cdn.example.com/forge/forge-linux.tar.gz",
		},
		{
			name:     "unknown_fallback",
			product:  "forge",
			platform: "unknown",
			arch:     "src",
			want:     "https://cdn.example.com/forge/forge-src.tar.gz",
		},
		{
			name:     "missing_product",
			product:  "hammer",
			platform: "linux",
			arch:     "src",
			wantErr:  "distribution.hammer",
		},
		{
			name:     "missing_platform",
			product:  "other",
			platform: "linux",
			arch:     "src",
			wantErr:  "distribution.other.linux",
		},
		{
			name:     "missing_arch",
			product:  "forge",
			platform: "darwin",
			arch:     "arm64",
			wantErr:  "distribution.forge.darwin.arm64",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := info.Source(tt.product, tt.platform, tt.arch)
			if tt.wantErr != "" {
				if !errors.Is(err, ErrArtifactNotFound) {
					t.Fatalf("expected ErrArtifactNotFound, got %v", err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error %q should name %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Source() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChecksumURL(t *testing.T) {
	got := ChecksumURL("https://cdn.example.com/forge-linux.tar.gz")
	if got != "https://cdn.example.com/forge-linux.tar.gz.sha256" {
		t.Errorf("ChecksumURL() = %q", got)
	}
}

func TestArchiveName(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		want    string
		wantErr bool
	}{
		{name: "plain", source: "https://cdn.example.com/forge/forge-linux.tar.gz", want: "forge-linux.tar.gz"},
		{name: "query_ignored", source: "https://cdn.example.com/forge.zip?sig=abc&exp=1", want: "forge.zip"},
		{name: "fragment_ignored", source: "https://cdn.example.com/a/b/forge.tgz#latest", want: "forge.tgz"},
		{name: "no_path", source: "https://cdn.example.com", wantErr: true},
		{name: "root_path", source: "https://cdn.example.com/", wantErr: true},
		{name: "unparseable", source: "http://[::1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ArchiveName(tt.source)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ArchiveName() = %q, want %q", got, tt.want)
			}
		})
	}
}
