package service

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/ZebulonRouseFrantzich/forge-install/internal/artifact"
	"github.com/ZebulonRouseFrantzich/forge-install/internal/config"
	"github.com/ZebulonRouseFrantzich/forge-install/internal/logger"
	"github.com/ZebulonRouseFrantzich/forge-install/internal/platform"
	"github.com/ZebulonRouseFrantzich/forge-install/internal/release"
)

const (
	// InstallDirPermissions sets the permission mode for the install root.
	InstallDirPermissions = 0755

	// progressLogInterval throttles info-level download progress records.
	progressLogInterval = time.Second
)

// Fetcher provides the HTTP operations the preinstall workflow needs.
type Fetcher interface {
	Request(ctx context.Context, url string, opts ...artifact.RequestOption) (*artifact.Response, error)
	Download(ctx context.Context, url, destPath string, progress artifact.DownloadProgress) (int64, error)
}

// PreinstallService fetches, verifies and unpacks the distribution for the
// host platform.
type PreinstallService struct {
	cfg      *config.Config
	fetcher  Fetcher
	detector platform.Detector
	clock    Clock
	log      *logger.Channel
}

// NewPreinstallService creates a new preinstall service with dependency injection.
func NewPreinstallService(
	cfg *config.Config,
	fetcher Fetcher,
	detector platform.Detector,
	clock Clock,
	log *logger.Channel,
) *PreinstallService {
	if clock == nil {
		clock = RealClock{}
	}
	if log == nil {
		log = logger.NewChannel(nil, "preinstall")
	}
	return &PreinstallService{
		cfg:      cfg,
		fetcher:  fetcher,
		detector: detector,
		clock:    clock,
		log:      log,
	}
}

// Execute runs every stage in order and stops at the first failure. The
// returned report is never nil.
func (s *PreinstallService) Execute(ctx context.Context) (*Report, error) {
	start := s.clock.Now()
	report := &Report{RunID: uuid.NewString()}
	log := s.log.With("run_id", report.RunID)

	err := s.run(ctx, log, report)
	report.Elapsed = s.clock.Now().Sub(start)
	if err != nil {
		return report, err
	}

	log.Info("fin", "path", report.FinalPath, "elapsed", report.Elapsed)
	return report, nil
}

func (s *PreinstallService) run(ctx context.Context, log *logger.Channel, report *Report) error {
	root := s.cfg.InstallDir

	// Detect
	info, err := s.detector.Detect(ctx)
	if err != nil {
		return report.fail(StageDetect, err, "failed detecting platform")
	}
	report.Variant = info.Variant
	log.Info("executing preinstall", "platform", info.Summary())
	report.complete(StageDetect)

	// Reset
	if err := s.reset(root); err != nil {
		return report.fail(StageReset, err, "failed resetting install directory", goerr.V("root", root))
	}
	report.complete(StageReset)

	// Resolve
	log.Info("fetching latest version information", "url", s.cfg.VersionInfoURL)
	resp, err := s.fetcher.Request(ctx, s.cfg.VersionInfoURL, artifact.WithHeader("Accept", "application/json"))
	if err != nil {
		return report.fail(StageResolve, err, "failed fetching package information", goerr.V("url", s.cfg.VersionInfoURL))
	}
	versionInfo, err := release.Parse(resp.Body)
	if err != nil {
		return report.fail(StageResolve, err, "failed decoding package information",
			goerr.V("url", s.cfg.VersionInfoURL),
			goerr.V("body", logger.Truncate(string(resp.Body), 0)))
	}
	report.complete(StageResolve)

	// Select
	if info.Variant == platform.VariantUnknown {
		if s.cfg.StrictPlatform {
			return report.fail(StageSelect, platform.ErrUnsupportedPlatform, "no distribution for platform", goerr.V("os", info.OS))
		}
		log.Warn("platform not recognized, falling back to source distribution", "os", info.OS)
	}
	platformKey, archKey := info.Variant.Keys()
	source, err := versionInfo.Source(s.cfg.Product, platformKey, archKey)
	if err != nil {
		return report.fail(StageSelect, err, "failed selecting distribution",
			goerr.V("product", s.cfg.Product),
			goerr.V("platform", platformKey),
			goerr.V("arch", archKey))
	}
	archiveName, err := release.ArchiveName(source)
	if err != nil {
		return report.fail(StageSelect, err, "failed naming distribution archive", goerr.V("source", source))
	}
	report.Source = source
	report.ArchivePath = filepath.Join(root, archiveName)
	report.complete(StageSelect)

	// Download
	archive := report.ArchivePath
	log.Info("downloading distribution files", "source", source, "archive", archive)
	received, err := s.fetcher.Download(ctx, source, archive, s.progressLogger(log))
	if err != nil {
		return report.fail(StageDownload, err, "failed downloading distribution", goerr.V("source", source), goerr.V("archive", archive))
	}
	report.Bytes = received
	log.Info("downloaded distribution files", "bytes", received)
	report.complete(StageDownload)

	// Checksum
	checksumURL := release.ChecksumURL(source)
	log.Info("fetching distribution file checksum information", "url", checksumURL)
	resp, err = s.fetcher.Request(ctx, checksumURL)
	if err != nil {
		return report.fail(StageChecksum, err, "failed fetching checksum information", goerr.V("url", checksumURL))
	}
	expected, err := artifact.ParseChecksum(string(resp.Body))
	if err != nil {
		return report.fail(StageChecksum, err, "failed reading checksum information", goerr.V("url", checksumURL))
	}
	report.Digest = expected
	log.Info("distribution file checksum", "sha256", expected)
	report.complete(StageChecksum)

	// Verify
	log.Info("verifying distribution file", "archive", archive)
	ok, err := artifact.Verify(archive, expected)
	if err != nil {
		return report.fail(StageVerify, err, "failed verifying distribution files", goerr.V("archive", archive))
	}
	if !ok {
		actual, _ := artifact.Digest(archive)
		if err := os.Remove(archive); err != nil {
			log.Warn("failed removing rejected archive", "archive", archive, "error", err)
		}
		mismatch := &ChecksumMismatchError{
			Archive:  archive,
			Expected: expected,
			Actual:   actual,
			Contact:  s.cfg.SupportContact,
		}
		return report.fail(StageVerify, mismatch, "checksum mismatch",
			goerr.V("expected", expected),
			goerr.V("actual", actual))
	}
	log.Info("successfully verified that the distribution file's sha256 checksum matches download")
	report.complete(StageVerify)

	// Extract
	log.Info("extracting distribution", "archive", archive, "dest", root)
	entries, err := artifact.Extract(archive, root, func(name string) {
		log.Info("extracting", "entry", name)
	})
	if err != nil {
		return report.fail(StageExtract, err, "failed extracting distribution", goerr.V("archive", archive))
	}
	if err := os.Remove(archive); err != nil {
		return report.fail(StageExtract, &artifact.FileSystemError{Op: "remove", Path: archive, Err: err}, "failed removing archive")
	}
	report.Entries = entries
	log.Info("extracted entries", "count", entries)
	report.complete(StageExtract)

	// Normalize
	extracted := filepath.Join(root, info.Variant.ExtractDir())
	final := s.cfg.CanonicalPath()
	if err := os.Rename(extracted, final); err != nil {
		return report.fail(StageNormalize, &artifact.FileSystemError{Op: "rename", Path: extracted, Err: err},
			"failed normalizing install layout", goerr.V("target", final))
	}
	report.FinalPath = final
	report.complete(StageNormalize)

	return nil
}

// reset creates root if needed and removes any previously extracted
// distribution directories.
func (s *PreinstallService) reset(root string) error {
	if err := os.MkdirAll(root, InstallDirPermissions); err != nil {
		return &artifact.FileSystemError{Op: "create install dir", Path: root, Err: err}
	}

	stale := append(platform.AllExtractDirs(), s.cfg.CanonicalDir)
	for _, name := range stale {
		path := filepath.Join(root, name)
		if err := os.RemoveAll(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &artifact.FileSystemError{Op: "remove", Path: path, Err: err}
		}
	}
	return nil
}

// progressLogger logs every chunk at debug level and at most one info
// record per progressLogInterval.
func (s *PreinstallService) progressLogger(log *logger.Channel) artifact.DownloadProgress {
	var last time.Time
	return func(received int64, total artifact.Total) {
		log.Debug("received bytes", "received", received, "total", total.String())

		now := s.clock.Now()
		if last.IsZero() || now.Sub(last) >= progressLogInterval {
			last = now
			log.Info("download progress", "received", received, "total", total.String())
		}
	}
}
