package update

import (
	"errors"
	"fmt"

	"github.com/InstaWP/iwp-mu/internal/types"
)

// Error kinds. Every pipeline failure unwraps to exactly one of these.
var (
	ErrNetwork         = errors.New("remote version check failed")
	ErrLockContention  = errors.New("update already in progress")
	ErrDownload        = errors.New("download failed")
	ErrExtract         = errors.New("extraction failed")
	ErrPayloadNotFound = errors.New("payload root not found in archive")
	ErrInvalidPayload  = errors.New("payload is missing its entry point")
	ErrBackup          = errors.New("backup failed")
	ErrSync            = errors.New("copy into install directory failed")
	ErrVerify          = errors.New("entry point missing after copy")
	ErrLockLost        = errors.New("update lock lost before mutation")
	ErrRollback        = errors.New("rollback failed")
)

// StageError records the pipeline stage a failure happened in.
// errors.Is matches both Kind and the underlying cause.
type StageError struct {
	Stage types.Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func stageError(stage types.Stage, kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// StageOf returns the stage recorded in err, or "" when err carries none.
func StageOf(err error) types.Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
