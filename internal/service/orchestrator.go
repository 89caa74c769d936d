package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"thumbforge-client/internal/model"
	"thumbforge-client/internal/quota"
	"thumbforge-client/internal/validator"
	"thumbforge-client/pkg/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Button titles shown next to the generate action.
const (
	ReasonReady      = "Generate"
	ReasonSignIn     = "Sign in required"
	ReasonGenerating = "Generating"
)

type Authenticator interface {
	IsAuthenticated() bool
}

type Quota interface {
	CanGenerate() bool
	Usage() model.Usage
	Increment() (int, error)
}

type ImageSource interface {
	SelectedFile() (*model.SelectedImage, bool)
}

type Generator interface {
	Generate(ctx context.Context, req model.GenerationRequest) (string, error)
}

type Downloader interface {
	Download(ctx context.Context, uri, dir string) (string, error)
}

// Recorder keeps a log of attempts. Recording failures never affect the
// generation outcome.
type Recorder interface {
	Start(ctx context.Context, req model.GenerationRequest) error
	Finish(ctx context.Context, requestID, artifactURI string, cause error) error
}

type Readiness struct {
	Enabled       bool             `json:"enabled"`
	Reason        string           `json:"reason"`
	Validation    validator.Report `json:"validation"`
	Authenticated bool             `json:"authenticated"`
	Usage         model.Usage      `json:"usage"`
}

type Options struct {
	Auth       Authenticator
	Quota      Quota
	Images     ImageSource
	Generator  Generator
	Downloader Downloader
	// Recorder is optional.
	Recorder Recorder
}

// Orchestrator runs at most one generation at a time for this process and
// charges the quota only for successful ones.
type Orchestrator struct {
	auth       Authenticator
	quota      Quota
	images     ImageSource
	generator  Generator
	downloader Downloader
	recorder   Recorder
	now        func() time.Time

	mu        sync.Mutex
	state     State
	listeners []func(State)
}

func NewOrchestrator(opts Options) *Orchestrator {
	return &Orchestrator{
		auth:       opts.Auth,
		quota:      opts.Quota,
		images:     opts.Images,
		generator:  opts.Generator,
		downloader: opts.Downloader,
		recorder:   opts.Recorder,
		now:        time.Now,
		state:      Idle{},
	}
}

// OnTransition registers fn for every state change, including the transient
// Succeeded and Failed states. fn runs on the submitting goroutine.
func (o *Orchestrator) OnTransition(fn func(State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Result() (model.GenerationResult, bool) {
	r := o.State().LastResult()
	if r == nil {
		return model.GenerationResult{}, false
	}
	return *r, true
}

// Readiness reports whether form could be submitted now and, if not, the
// first reason in display order.
func (o *Orchestrator) Readiness(form model.FormState) Readiness {
	_, hasImage := o.images.SelectedFile()
	r := Readiness{
		Validation:    validator.Validate(form, hasImage),
		Authenticated: o.auth.IsAuthenticated(),
		Usage:         o.quota.Usage(),
	}

	switch {
	case !r.Authenticated:
		r.Reason = ReasonSignIn
	case r.Usage.Remaining <= 0:
		r.Reason = quota.LimitMessage
	case !r.Validation.Valid():
		r.Reason = validator.MessageIncomplete
	case o.State().Phase() == PhaseSubmitting:
		r.Reason = ReasonGenerating
	default:
		r.Enabled = true
		r.Reason = ReasonReady
	}
	return r
}

// Submit sends one generation request for form and the selected image.
// Auth, quota and validation are checked before anything goes on the wire.
func (o *Orchestrator) Submit(ctx context.Context, form model.FormState) (model.GenerationResult, error) {
	if !o.auth.IsAuthenticated() {
		return model.GenerationResult{}, ErrUnauthenticated
	}
	if !o.quota.CanGenerate() {
		return model.GenerationResult{}, quota.ErrQuotaExceeded
	}
	image, hasImage := o.images.SelectedFile()
	if err := validator.Validate(form, hasImage).Err(); err != nil {
		return model.GenerationResult{}, err
	}

	req := model.GenerationRequest{ID: uuid.New().String(), Form: form, Image: image}

	prior, err := o.begin(req.ID)
	if err != nil {
		return model.GenerationResult{}, err
	}

	log := logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"category":   form.DisplayCategory(),
		"platform":   form.Platform,
	})
	log.Info("submitting generation")

	o.recordStart(ctx, req)

	uri, genErr := o.generator.Generate(ctx, req)
	if genErr == nil && uri == "" {
		genErr = errors.New("empty artifact uri")
	}
	if genErr != nil {
		failure := &GenerationError{RequestID: req.ID, Cause: genErr}
		log.Warnf("generation failed: %v", genErr)
		o.recordFinish(ctx, req.ID, "", failure)
		o.settle(Failed{Err: failure, Result: prior}, Idle{Result: prior, Failure: failure})
		return model.GenerationResult{}, failure
	}

	result := &model.GenerationResult{RequestID: req.ID, ArtifactURI: uri, CompletedAt: o.now()}
	count, err := o.quota.Increment()
	if err != nil {
		log.Warnf("usage counter not updated: %v", err)
	} else {
		log.WithField("count", count).Info("generation succeeded")
	}
	o.recordFinish(ctx, req.ID, uri, nil)
	o.settle(Succeeded{Result: result}, Idle{Result: result})
	return *result, nil
}

// begin moves Idle to Submitting and returns the result carried so far.
func (o *Orchestrator) begin(requestID string) (*model.GenerationResult, error) {
	o.mu.Lock()
	if o.state.Phase() == PhaseSubmitting {
		o.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	prior := o.state.LastResult()
	next := Submitting{RequestID: requestID, StartedAt: o.now(), Result: prior}
	o.state = next
	listeners := append([]func(State){}, o.listeners...)
	o.mu.Unlock()

	notify(listeners, next)
	return prior, nil
}

func (o *Orchestrator) settle(outcome State, rest Idle) {
	o.mu.Lock()
	o.state = rest
	listeners := append([]func(State){}, o.listeners...)
	o.mu.Unlock()

	notify(listeners, outcome)
	notify(listeners, rest)
}

func notify(listeners []func(State), s State) {
	for _, fn := range listeners {
		fn(s)
	}
}

func (o *Orchestrator) recordStart(ctx context.Context, req model.GenerationRequest) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Start(ctx, req); err != nil {
		logger.Warnf("recording generation %s: %v", req.ID, err)
	}
}

func (o *Orchestrator) recordFinish(ctx context.Context, requestID, uri string, cause error) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Finish(context.WithoutCancel(ctx), requestID, uri, cause); err != nil {
		logger.Warnf("recording outcome of %s: %v", requestID, err)
	}
}

// DownloadResult saves the current artifact into dir and returns the path.
func (o *Orchestrator) DownloadResult(ctx context.Context, dir string) (string, error) {
	result, ok := o.Result()
	if !ok {
		return "", ErrNoResult
	}
	path, err := o.downloader.Download(ctx, result.ArtifactURI, dir)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", result.RequestID, err)
	}
	logger.WithFields(logrus.Fields{"request_id": result.RequestID, "path": path}).Info("thumbnail saved")
	return path, nil
}
