package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ZebulonRouseFrantzich/forge-install/internal/artifact"
	"github.com/ZebulonRouseFrantzich/forge-install/internal/config"
	"github.com/ZebulonRouseFrantzich/forge-install/internal/logger"
	"github.com/ZebulonRouseFrantzich/forge-install/internal/platform"
	"github.com/ZebulonRouseFrantzich/forge-install/internal/release"
	"github.com/ZebulonRouseFrantzich/forge-install/internal/testutil"
)

var allStages = []Stage{
	StageDetect, StageReset, StageResolve, StageSelect, StageDownload,
	StageChecksum, StageVerify, StageExtract, StageNormalize,
}

// steppingClock advances by step on every call.
type steppingClock struct {
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

type fixture struct {
	server *testutil.Server
	cfg    *config.Config
	root   string
	logs   *observer.ObservedLogs
}

// newFixture serves a version-info document whose every platform points at
// archivePath, plus the archive and its checksum.
func newFixture(t *testing.T, archivePath string, archive []byte) *fixture {
	t.Helper()

	server := testutil.NewServer(t, nil)
	source := server.URL + archivePath
	document := fmt.Sprintf(`{"distribution": {"forge": {
		"darwin": {"x64": %[1]q},
		"linux": {"src": %[1]q},
		"win32": {"x32": %[1]q},
		"unknown": {"src": %[1]q}
	}}}`, source)

	server.Handle("/version_info", testutil.Route{Body: []byte(document)})
	server.Handle(archivePath, testutil.Route{Body: archive})
	server.Handle(archivePath+release.ChecksumSuffix, testutil.Route{
		Body: []byte(testutil.SHA256Hex(archive) + "  " + filepath.Base(archivePath) + "\n"),
	})

	root := filepath.Join(t.TempDir(), "bin")
	cfg := config.Default()
	cfg.VersionInfoURL = server.URL + "/version_info"
	cfg.InstallDir = root

	return &fixture{server: server, cfg: cfg, root: root}
}

func (f *fixture) service(t *testing.T, info *platform.Info) *PreinstallService {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	f.logs = logs
	return NewPreinstallService(
		f.cfg,
		artifact.NewClient(artifact.DefaultTimeout),
		platform.StaticDetector{Info: info},
		&steppingClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: time.Second},
		logger.NewChannel(zap.New(core), "preinstall"),
	)
}

func linuxHost() *platform.Info {
	return &platform.Info{OS: "linux", Arch: "amd64", ArchRaw: "amd64", Release: "6.1.0"}
}

func TestPreinstall_Linux(t *testing.T) {
	archive := testutil.TarGz(t, []testutil.Entry{
		{Name: "unknown-src/"},
		{Name: "unknown-src/forge", Body: "#!/bin/sh\necho forge 1.0", Mode: 0755},
		{Name: "unknown-src/lib/"},
		{Name: "unknown-src/lib/core.js", Body: "module.exports = {}"},
	})
	f := newFixture(t, "/dist/forge-linux.tar.gz", archive)

	report, err := f.service(t, linuxHost()).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	final := filepath.Join(f.root, "native")
	content, err := os.ReadFile(filepath.Join(final, "forge"))
	if err != nil {
		t.Fatalf("installed binary missing: %v", err)
	}
	if string(content) != "#!/bin/sh\necho forge 1.0" {
		t.Errorf("installed content = %q", content)
	}
	if _, err := os.Stat(filepath.Join(final, "lib", "core.js")); err != nil {
		t.Errorf("nested file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.root, "unknown-src")); !os.IsNotExist(err) {
		t.Error("extracted directory should have been renamed")
	}
	if _, err := os.Stat(report.ArchivePath); !os.IsNotExist(err) {
		t.Error("archive should be deleted after extraction")
	}

	if report.RunID == "" {
		t.Error("RunID should be set")
	}
	if report.Variant != platform.VariantLinux {
		t.Errorf("Variant = %v, want linux", report.Variant)
	}
	if report.Source != f.server.URL+"/dist/forge-linux.tar.gz" {
		t.Errorf("Source = %q", report.Source)
	}
	if report.ArchivePath != filepath.Join(f.root, "forge-linux.tar.gz") {
		t.Errorf("ArchivePath = %q", report.ArchivePath)
	}
	if report.Bytes != int64(len(archive)) {
		t.Errorf("Bytes = %d, want %d", report.Bytes, len(archive))
	}
	if report.Digest != testutil.SHA256Hex(archive) {
		t.Errorf("Digest = %q", report.Digest)
	}
	if report.Entries != 4 {
		t.Errorf("Entries = %d, want 4", report.Entries)
	}
	if report.FinalPath != final {
		t.Errorf("FinalPath = %q, want %q", report.FinalPath, final)
	}
	if !reflect.DeepEqual(report.Completed, allStages) {
		t.Errorf("Completed = %v, want %v", report.Completed, allStages)
	}
	if report.Failed != "" {
		t.Errorf("Failed = %q, want empty", report.Failed)
	}
	if report.Elapsed <= 0 {
		t.Errorf("Elapsed = %v, want positive", report.Elapsed)
	}

	wantRequests := []string{"/version_info", "/dist/forge-linux.tar.gz", "/dist/forge-linux.tar.gz.sha256"}
	if got := f.server.Requests(); !reflect.DeepEqual(got, wantRequests) {
		t.Errorf("requests = %v, want %v", got, wantRequests)
	}

	if f.logs.FilterMessage("extracting").Len() != 4 {
		t.Errorf("expected one extracting record per entry, got %d", f.logs.FilterMessage("extracting").Len())
	}
	for _, entry := range f.logs.All() {
		if entry.ContextMap()["run_id"] != report.RunID {
			t.Errorf("record %q missing run_id", entry.Message)
			break
		}
	}
}

func TestPreinstall_DarwinZip(t *testing.T) {
	archive := testutil.Zip(t, []testutil.Entry{
		{Name: "darwin-x64/"},
		{Name: "darwin-x64/forge", Body: "mach-o"},
	})
	f := newFixture(t, "/dist/forge-darwin.zip", archive)

	info := &platform.Info{OS: "darwin", ArchRaw: "arm64"}
	report, err := f.service(t, info).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if report.Variant != platform.VariantDarwin {
		t.Errorf("Variant = %v, want darwin", report.Variant)
	}
	if _, err := os.Stat(filepath.Join(f.root, "native", "forge")); err != nil {
		t.Errorf("installed binary missing: %v", err)
	}
}

func TestPreinstall_ResetsPreviousInstall(t *testing.T) {
	archive := testutil.TarGz(t, []testutil.Entry{{Name: "unknown-src/forge", Body: "new"}})
	f := newFixture(t, "/dist/forge.tar.gz", archive)

	for _, stale := range []string{"native/old-file", "win32-x32/forge.exe", "darwin-x64/forge"} {
		path := filepath.Join(f.root, stale)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("stale"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	keep := filepath.Join(f.root, "README")
	if err := os.WriteFile(keep, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := f.service(t, linuxHost()).Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, gone := range []string{"native/old-file", "win32-x32", "darwin-x64"} {
		if _, err := os.Stat(filepath.Join(f.root, gone)); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", gone)
		}
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("unrelated files in the install root must be kept")
	}
	if content, _ := os.ReadFile(filepath.Join(f.root, "native", "forge")); string(content) != "new" {
		t.Errorf("native/forge = %q, want new", content)
	}
}

func TestPreinstall_ChecksumMismatch(t *testing.T) {
	archive := testutil.TarGz(t, []testutil.Entry{{Name: "unknown-src/forge", Body: "tampered"}})
	f := newFixture(t, "/dist/forge.tar.gz", archive)
	f.server.Handle("/dist/forge.tar.gz.sha256", testutil.Route{
		Body: []byte("0000000000000000000000000000000000000000000000000000000000000000  forge.tar.gz"),
	})
	f.cfg.SupportContact = "help@example.com"

	report, err := f.service(t, linuxHost()).Execute(context.Background())

	var mismatch *ChecksumMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected *ChecksumMismatchError, got %v", err)
	}
	if mismatch.Contact != "help@example.com" {
		t.Errorf("Contact = %q", mismatch.Contact)
	}
	if mismatch.Actual != testutil.SHA256Hex(archive) {
		t.Errorf("Actual = %q, want digest of the archive", mismatch.Actual)
	}
	want := "Failed verifying distribution files. Downloaded file does not match checksum. Please contact help@example.com"
	if mismatch.Error() != want {
		t.Errorf("Error() = %q, want %q", mismatch.Error(), want)
	}

	if report.Failed != StageVerify {
		t.Errorf("Failed = %q, want verify", report.Failed)
	}
	if !reflect.DeepEqual(report.Completed, allStages[:6]) {
		t.Errorf("Completed = %v, want %v", report.Completed, allStages[:6])
	}
	if report.Entries != 0 {
		t.Errorf("Entries = %d, extraction must not run", report.Entries)
	}
	if _, err := os.Stat(filepath.Join(f.root, "unknown-src")); !os.IsNotExist(err) {
		t.Error("nothing should be extracted after a mismatch")
	}
	if _, err := os.Stat(report.ArchivePath); !os.IsNotExist(err) {
		t.Error("rejected archive should be removed")
	}

	var wrapped *goerr.Error
	if !errors.As(err, &wrapped) {
		t.Fatalf("expected goerr wrapper, got %T", err)
	}
	if wrapped.Values()["stage"] != string(StageVerify) {
		t.Errorf("stage value = %v", wrapped.Values()["stage"])
	}
}

func TestPreinstall_UnknownPlatform(t *testing.T) {
	archive := testutil.TarGz(t, []testutil.Entry{{Name: "unknown-src/forge", Body: "src"}})
	info := &platform.Info{OS: "freebsd", ArchRaw: "amd64"}

	t.Run("falls_back_to_source", func(t *testing.T) {
		f := newFixture(t, "/dist/forge-src.tar.gz", archive)

		report, err := f.service(t, info).Execute(context.Background())
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if report.Variant != platform.VariantUnknown {
			t.Errorf("Variant = %v, want unknown", report.Variant)
		}
		if f.logs.FilterLevelExact(zapcore.WarnLevel).Len() == 0 {
			t.Error("expected a fallback warning")
		}
		if _, err := os.Stat(filepath.Join(f.root, "native", "forge")); err != nil {
			t.Errorf("installed binary missing: %v", err)
		}
	})

	t.Run("strict_fails", func(t *testing.T) {
		f := newFixture(t, "/dist/forge-src.tar.gz", archive)
		f.cfg.StrictPlatform = true

		report, err := f.service(t, info).Execute(context.Background())
		if !errors.Is(err, platform.ErrUnsupportedPlatform) {
			t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
		}
		if report.Failed != StageSelect {
			t.Errorf("Failed = %q, want select", report.Failed)
		}
		if got := f.server.Requests(); !reflect.DeepEqual(got, []string{"/version_info"}) {
			t.Errorf("nothing should be downloaded, requests = %v", got)
		}
	})
}

func TestPreinstall_Failures(t *testing.T) {
	archive := testutil.TarGz(t, []testutil.Entry{{Name: "unknown-src/forge", Body: "bin"}})

	tests := []struct {
		name      string
		setup     func(f *fixture)
		wantStage Stage
		check     func(t *testing.T, err error)
	}{
		{
			name: "version_info_http_error",
			setup: func(f *fixture) {
				f.server.Handle("/version_info", testutil.Route{Status: http.StatusServiceUnavailable})
			},
			wantStage: StageResolve,
			check: func(t *testing.T, err error) {
				var statusErr *artifact.HTTPStatusError
				if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
					t.Errorf("expected HTTP 503 error, got %v", err)
				}
			},
		},
		{
			name: "version_info_malformed",
			setup: func(f *fixture) {
				f.server.Handle("/version_info", testutil.Route{Body: []byte("<html>")})
			},
			wantStage: StageResolve,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, release.ErrMalformed) {
					t.Errorf("expected ErrMalformed, got %v", err)
				}
			},
		},
		{
			name: "artifact_missing",
			setup: func(f *fixture) {
				f.server.Handle("/version_info", testutil.Route{Body: []byte(`{"distribution": {"forge": {}}}`)})
			},
			wantStage: StageSelect,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, release.ErrArtifactNotFound) {
					t.Errorf("expected ErrArtifactNotFound, got %v", err)
				}
			},
		},
		{
			name: "archive_not_found",
			setup: func(f *fixture) {
				f.server.Handle("/dist/forge.tar.gz", testutil.Route{Status: http.StatusNotFound})
			},
			wantStage: StageDownload,
			check: func(t *testing.T, err error) {
				var statusErr *artifact.HTTPStatusError
				if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
					t.Errorf("expected HTTP 404 error, got %v", err)
				}
			},
		},
		{
			name: "checksum_missing",
			setup: func(f *fixture) {
				f.server.Handle("/dist/forge.tar.gz.sha256", testutil.Route{Status: http.StatusNotFound})
			},
			wantStage: StageChecksum,
			check: func(t *testing.T, err error) {
				var statusErr *artifact.HTTPStatusError
				if !errors.As(err, &statusErr) {
					t.Errorf("expected *HTTPStatusError, got %v", err)
				}
			},
		},
		{
			name: "checksum_empty",
			setup: func(f *fixture) {
				f.server.Handle("/dist/forge.tar.gz.sha256", testutil.Route{Body: []byte("\n")})
			},
			wantStage: StageChecksum,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, artifact.ErrEmptyChecksum) {
					t.Errorf("expected ErrEmptyChecksum, got %v", err)
				}
			},
		},
		{
			name: "corrupt_archive",
			setup: func(f *fixture) {
				corrupt := []byte("not a gzip stream")
				f.server.Handle("/dist/forge.tar.gz", testutil.Route{Body: corrupt})
				f.server.Handle("/dist/forge.tar.gz.sha256", testutil.Route{Body: []byte(testutil.SHA256Hex(corrupt))})
			},
			wantStage: StageExtract,
			check: func(t *testing.T, err error) {
				var formatErr *artifact.ArchiveFormatError
				if !errors.As(err, &formatErr) {
					t.Errorf("expected *ArchiveFormatError, got %v", err)
				}
			},
		},
		{
			name: "wrong_top_level_directory",
			setup: func(f *fixture) {
				other := testutil.TarGz(t, []testutil.Entry{{Name: "darwin-x64/forge", Body: "bin"}})
				f.server.Handle("/dist/forge.tar.gz", testutil.Route{Body: other})
				f.server.Handle("/dist/forge.tar.gz.sha256", testutil.Route{Body: []byte(testutil.SHA256Hex(other))})
			},
			wantStage: StageNormalize,
			check: func(t *testing.T, err error) {
				var fsErr *artifact.FileSystemError
				if !errors.As(err, &fsErr) || fsErr.Op != "rename" {
					t.Errorf("expected rename *FileSystemError, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "/dist/forge.tar.gz", archive)
			tt.setup(f)

			report, err := f.service(t, linuxHost()).Execute(context.Background())
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if report == nil {
				t.Fatal("report must be returned on failure")
			}
			if report.Failed != tt.wantStage {
				t.Errorf("Failed = %q, want %q", report.Failed, tt.wantStage)
			}
			if _, err := os.Stat(filepath.Join(f.root, "native")); !os.IsNotExist(err) {
				t.Error("canonical directory must not exist after a failed run")
			}
			tt.check(t, err)
		})
	}
}

func TestPreinstall_DetectFailure(t *testing.T) {
	f := newFixture(t, "/dist/forge.tar.gz", nil)

	svc := NewPreinstallService(f.cfg, artifact.NewClient(0), platform.StaticDetector{}, nil, nil)
	report, err := svc.Execute(context.Background())
	if err == nil {
		t.Fatal("expected detection error")
	}
	if report.Failed != StageDetect {
		t.Errorf("Failed = %q, want detect", report.Failed)
	}
	if len(f.server.Requests()) != 0 {
		t.Error("no request should be made when detection fails")
	}
}
