package service

import (
	"fmt"
	"strings"
)

// ChecksumMismatchError reports a downloaded archive whose SHA-256 digest
// differs from the published checksum.
type ChecksumMismatchError struct {
	Archive  string
	Expected string
	Actual   string
	Contact  string
}

func (e *ChecksumMismatchError) Error() string {
	msg := "Failed verifying distribution files. Downloaded file does not match checksum."
	if e.Contact != "" {
		msg += " Please contact " + e.Contact
	}
	return msg
}

// VerificationFailedError reports a verification command that exited
// nonzero. The installer exits with the same code.
type VerificationFailedError struct {
	Command []string
	Code    int
	Stdout  string
	Stderr  string
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("error verifying installation, %q exited with code: %d", strings.Join(e.Command, " "), e.Code)
}

// ExitCode returns the verification command's exit code.
func (e *VerificationFailedError) ExitCode() int {
	return e.Code
}
