// Package artifact provides the download, verification, and extraction
// primitives used to install a precompiled distribution archive.
//
// # Operations
//
// Every operation is a single blocking call:
//   - Client.Request: one GET with a fixed timeout, full response in memory
//   - Client.Download: streamed GET written to disk with per-chunk progress
//   - Verify: streamed SHA-256 comparison against an expected hex digest
//   - Unzip / Untargz: archive extraction with per-entry progress
//
// None of them retry. A caller that wants another attempt calls again.
//
// # Errors
//
// Failures are reported as exactly one of *NetworkError, *HTTPStatusError,
// *FileSystemError or *ArchiveFormatError. Use errors.As to branch on the
// kind. A checksum mismatch is not an error: Verify reports it as false.
//
// # Usage
//
//	client := artifact.NewClient(artifact.DefaultTimeout)
//
//	n, err := client.Download(ctx, url, "bin/dist.tar.gz", func(got int64, total artifact.Total) {
//	    log.Printf("received %d / %s bytes", got, total)
//	})
//	if err != nil {
//	    return err
//	}
//
//	ok, err := artifact.Verify("bin/dist.tar.gz", expected)
//	if err != nil {
//	    return err
//	}
//	if !ok {
//	    return errors.New("checksum mismatch")
//	}
//
//	count, err := artifact.Untargz("bin/dist.tar.gz", "bin", nil)
package artifact
