package service

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/ZebulonRouseFrantzich/forge-install/internal/logger"
)

// ErrEmptyCommand is returned when no verification command is configured.
var ErrEmptyCommand = errors.New("verification command is empty")

// PostinstallService checks an installation by running the installed tool.
type PostinstallService struct {
	command []string
	runner  Runner
	log     *logger.Channel
}

// NewPostinstallService creates a postinstall service that runs command.
func NewPostinstallService(command []string, runner Runner, log *logger.Channel) *PostinstallService {
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = logger.NewChannel(nil, "postinstall")
	}
	return &PostinstallService{command: command, runner: runner, log: log}
}

// Execute runs the verification command. A command that cannot start fails
// with a wrapped error; a nonzero exit fails with *VerificationFailedError.
func (s *PostinstallService) Execute(ctx context.Context) (*RunResult, error) {
	if len(s.command) == 0 {
		return nil, goerr.Wrap(ErrEmptyCommand, "error verifying installation")
	}

	s.log.Info("verifying installation", "command", strings.Join(s.command, " "))

	result, err := s.runner.Run(ctx, s.command[0], s.command[1:]...)
	if err != nil {
		return result, goerr.Wrap(err, "error verifying installation", goerr.V("command", s.command))
	}

	if result.ExitCode != 0 {
		failed := &VerificationFailedError{
			Command: s.command,
			Code:    result.ExitCode,
			Stdout:  result.Stdout,
			Stderr:  result.Stderr,
		}
		s.log.Error(failed.Error())
		if out := strings.TrimSpace(result.Stdout); out != "" {
			s.log.Info(out)
		}
		if out := strings.TrimSpace(result.Stderr); out != "" {
			s.log.Error(out)
		}
		return result, failed
	}

	s.log.Info("successfully verified installation",
		"stdout", strings.TrimSpace(result.Stdout),
		"stderr", strings.TrimSpace(result.Stderr))
	s.log.Info("fin")
	return result, nil
}
