package service

import (
	"time"

	"thumbforge-client/internal/model"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// State is one of Idle, Submitting, Succeeded or Failed.
type State interface {
	Phase() Phase
	// LastResult is the most recent artifact, carried across every phase.
	LastResult() *model.GenerationResult
}

// Idle is the resting state. Failure is set when the last attempt failed.
type Idle struct {
	Result  *model.GenerationResult
	Failure error
}

type Submitting struct {
	RequestID string
	StartedAt time.Time
	Result    *model.GenerationResult
}

// Succeeded and Failed are only published to transition listeners; the
// machine settles in Idle right after.
type Succeeded struct {
	Result *model.GenerationResult
}

type Failed struct {
	Err    error
	Result *model.GenerationResult
}

func (Idle) Phase() Phase       { return PhaseIdle }
func (Submitting) Phase() Phase { return PhaseSubmitting }
func (Succeeded) Phase() Phase  { return PhaseSucceeded }
func (Failed) Phase() Phase     { return PhaseFailed }

func (s Idle) LastResult() *model.GenerationResult       { return s.Result }
func (s Submitting) LastResult() *model.GenerationResult { return s.Result }
func (s Succeeded) LastResult() *model.GenerationResult  { return s.Result }
func (s Failed) LastResult() *model.GenerationResult     { return s.Result }
