// Package service runs the installer workflows: preinstall fetches and
// unpacks the distribution, postinstall checks the installed binary.
package service

import (
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/ZebulonRouseFrantzich/forge-install/internal/platform"
)

// Stage names one step of the preinstall workflow.
type Stage string

const (
	StageDetect    Stage = "detect"
	StageReset     Stage = "reset"
	StageResolve   Stage = "resolve"
	StageSelect    Stage = "select"
	StageDownload  Stage = "download"
	StageChecksum  Stage = "checksum"
	StageVerify    Stage = "verify"
	StageExtract   Stage = "extract"
	StageNormalize Stage = "normalize"
)

// Report summarizes a preinstall run. It is returned on failure too, with
// Failed naming the stage that stopped the run.
type Report struct {
	RunID       string
	Variant     platform.Variant
	Source      string
	ArchivePath string
	Bytes       int64
	Digest      string
	Entries     int
	FinalPath   string
	Completed   []Stage
	Failed      Stage
	Elapsed     time.Duration
}

func (r *Report) complete(stage Stage) {
	r.Completed = append(r.Completed, stage)
}

// fail records stage as the failed stage and wraps err with the stage and
// any extra values.
func (r *Report) fail(stage Stage, err error, msg string, values ...goerr.Option) error {
	r.Failed = stage
	opts := append([]goerr.Option{goerr.V("stage", string(stage)), goerr.V("run_id", r.RunID)}, values...)
	return goerr.Wrap(err, msg, opts...)
}
