package pipeline

import (
	"errors"
	"fmt"
)

// Stage names one step of a run.
type Stage string

const (
	StageValidate     Stage = "validate"
	StageResolveAudio Stage = "resolve_audio"
	StageRenderScenes Stage = "render_scenes"
	StageChain        Stage = "chain_transitions"
	StageMixAudio     Stage = "mix_audio"
	StageEncode       Stage = "encode"
	StageDone         Stage = "done"
)

var (
	ErrNoScenes         = errors.New("no scenes provided")
	ErrAllScenesDropped = errors.New("all scenes dropped")
)

// PipelineError is a run-fatal failure and the stage it happened in.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func fail(stage Stage, err error) error {
	return &PipelineError{Stage: stage, Err: err}
}
