package pipeline

import (
	"errors"
	"fmt"
)

// Stage names, as reported in logs, spans and metrics.
const (
	StageClear         = "clear"
	StageHashModule    = "hash-module"
	StageIcons         = "icons"
	StageServiceWorker = "service-worker"
	StageHTML          = "html"
	StageWrite         = "write"
	StageOfflineCheck  = "offline-check"
	StageArchive       = "archive"
	StageManifest      = "manifest"
)

// StageError is the error a failed run returns. Stage names where it failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage err came from, or "" when err did not come
// from a pipeline run.
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
