// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/relabs-tech/bikepath_logger/internal/features"
	"github.com/relabs-tech/bikepath_logger/internal/gps"
	"github.com/relabs-tech/bikepath_logger/internal/motion"
	"github.com/relabs-tech/bikepath_logger/internal/window"
)

// ErrCameraLockTimeout is returned by Run when the camera could not be
// acquired in time.
var ErrCameraLockTimeout = errors.New("timed out waiting to lock camera")

// Options tune the capture cycle.
type Options struct {
	SessionID       string
	MinSpeedKmh     float32
	WorstCaseWindow time.Duration
	DynamicWindow   bool
	PreCaptureLead  time.Duration
	LockTimeout     time.Duration
	// CameraLock is shared by everything opening the same camera. A private
	// lock is created when nil.
	CameraLock *semaphore.Weighted
}

// DefaultOptions returns the settings used on the bike.
func DefaultOptions() Options {
	return Options{
		MinSpeedKmh:     5,
		WorstCaseWindow: time.Duration(window.WorstCase),
		DynamicWindow:   true,
		PreCaptureLead:  250 * time.Millisecond,
		LockTimeout:     2500 * time.Millisecond,
	}
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Hardware Hardware
	Buffer   *motion.Buffer
	Clock    Clock
	Location LocationProvider
	Sink     Sink
	Images   ImageStore
	Logger   *slog.Logger
}

// Stats counts capture outcomes.
type Stats struct {
	Persisted uint64
	Skipped   uint64
	Failed    uint64
}

// pending is the capture in flight, from the still request to persistence.
type pending struct {
	cycle      uint64
	wallMillis int64

	started  bool
	frame    int64
	location gps.Location
	hasFix   bool

	completed bool
	exposure  window.Exposure
	rng       window.Range
	valid     bool
	fragment  features.Fragment

	image *Image
}

// Orchestrator drives the camera through focus, metering and still capture
// and turns each still into a features.Record.
type Orchestrator struct {
	hw       Hardware
	buf      *motion.Buffer
	clock    Clock
	loc      LocationProvider
	sink     Sink
	images   ImageStore
	logger   *slog.Logger
	opts     Options
	resolver *window.Resolver
	lock     *semaphore.Weighted

	events   chan event
	done     chan struct{}
	doneOnce sync.Once

	stateMu sync.Mutex
	state   State
	onState func(State)

	persisted atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64

	// owned by the loop
	active   bool
	cycle    uint64
	sequence uint64
	current  *pending
}

// New returns an orchestrator in the Preview state.
func New(d Deps, opts Options) *Orchestrator {
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.WorstCaseWindow <= 0 {
		opts.WorstCaseWindow = time.Duration(window.WorstCase)
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultOptions().LockTimeout
	}
	lock := opts.CameraLock
	if lock == nil {
		lock = semaphore.NewWeighted(1)
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		hw:       d.Hardware,
		buf:      d.Buffer,
		clock:    d.Clock,
		loc:      d.Location,
		sink:     d.Sink,
		images:   d.Images,
		logger:   logger.With("component", "capture", "session", opts.SessionID),
		opts:     opts,
		resolver: window.NewResolver(int64(opts.WorstCaseWindow)),
		lock:     lock,
		events:   make(chan event, 64),
		done:     make(chan struct{}),
	}
}

// SessionID identifies the records of this orchestrator.
func (o *Orchestrator) SessionID() string { return o.opts.SessionID }

// OnStateChange registers fn to be called from the loop on every state
// change. It must be set before Run.
func (o *Orchestrator) OnStateChange(fn func(State)) { o.onState = fn }

// State returns the current state.
func (o *Orchestrator) State() State {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.state
}

// Stats returns the capture counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Persisted: o.persisted.Load(),
		Skipped:   o.skipped.Load(),
		Failed:    o.failed.Load(),
	}
}

// Run locks and opens the camera and processes events until ctx is
// canceled. Failing to lock the camera within the timeout is fatal and
// returns ErrCameraLockTimeout.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.closeDone()

	lockCtx, cancel := context.WithTimeout(ctx, o.opts.LockTimeout)
	err := o.lock.Acquire(lockCtx, 1)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w after %s", ErrCameraLockTimeout, o.opts.LockTimeout)
	}
	defer o.lock.Release(1)

	if err := o.hw.Open(ctx, o); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer func() {
		// Callbacks racing the shutdown must not block the camera's
		// goroutines.
		o.closeDone()
		o.buf.StopCollecting()
		if err := o.hw.Close(); err != nil {
			o.logger.Warn("close camera", "error", err)
		}
	}()

	if err := o.hw.StartPreview(); err != nil {
		return fmt.Errorf("start preview: %w", err)
	}
	o.logger.Info("capture: camera open, preview running")

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("capture: stopped", "persisted", o.persisted.Load(), "skipped", o.skipped.Load())
			return nil
		case ev := <-o.events:
			o.handle(ctx, ev)
		}
	}
}

// Start requests continuous capturing.
func (o *Orchestrator) Start() { o.post(startEvent{}) }

// Stop ends continuous capturing. A capture already in flight is still
// completed and persisted.
func (o *Orchestrator) Stop() { o.post(stopEvent{}) }

func (o *Orchestrator) OnCaptureResult(r CaptureResult) { o.post(resultEvent{result: r}) }

func (o *Orchestrator) OnStillStarted(frame, timestampNanos int64) {
	o.post(stillStartedEvent{frame: frame, timestamp: timestampNanos})
}

func (o *Orchestrator) OnStillCompleted(frame, exposureNanos int64) {
	o.post(stillCompletedEvent{frame: frame, exposure: exposureNanos})
}

func (o *Orchestrator) OnImageAvailable(img Image) { o.post(imageEvent{image: img}) }

func (o *Orchestrator) OnError(err error) { o.post(errorEvent{err: err}) }

func (o *Orchestrator) closeDone() {
	o.doneOnce.Do(func() { close(o.done) })
}

func (o *Orchestrator) post(ev event) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

// postAfter posts ev once d has elapsed, unless ctx ends first.
func (o *Orchestrator) postAfter(ctx context.Context, d time.Duration, ev event) {
	go func() {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			o.post(ev)
		case <-ctx.Done():
		}
	}()
}

func (o *Orchestrator) setState(s State) {
	o.stateMu.Lock()
	prev := o.state
	o.state = s
	o.stateMu.Unlock()

	if prev == s {
		return
	}
	o.logger.Debug("capture: state", "from", prev, "to", s)
	if o.onState != nil {
		o.onState(s)
	}
}

func (o *Orchestrator) handle(ctx context.Context, ev event) {
	switch e := ev.(type) {
	case startEvent:
		if o.active {
			return
		}
		o.active = true
		o.logger.Info("capture: started")
		if o.State() == Preview && o.current == nil {
			o.setState(WaitingFocusLock)
		}

	case stopEvent:
		if !o.active {
			return
		}
		o.active = false
		o.logger.Info("capture: stopped by request", "in_flight", o.current != nil)
		if o.current == nil {
			o.setState(Preview)
		}

	case resultEvent:
		o.onResult(ctx, e.result)

	case stillStartedEvent:
		o.onStillStarted(e.frame, e.timestamp)

	case stillCompletedEvent:
		o.onStillCompleted(ctx, e.frame, e.exposure)

	case imageEvent:
		p := o.current
		if p == nil || p.image != nil || (p.started && e.image.Frame != p.frame) {
			o.logger.Warn("capture: unexpected image, dropping", "frame", e.image.Frame)
			return
		}
		img := e.image
		p.image = &img
		o.tryPersist()

	case errorEvent:
		o.onError(e.err)

	case leadElapsedEvent:
		if o.current == nil || o.current.cycle != e.cycle {
			return
		}
		o.issueStill()

	case windowClosedEvent:
		if o.current == nil || o.current.cycle != e.cycle || o.current.completed {
			return
		}
		o.closeWindow()
	}
}

func (o *Orchestrator) onResult(ctx context.Context, r CaptureResult) {
	switch o.State() {
	case Preview:
		// Picks the cycle up again after an error reset.
		if o.active && o.current == nil {
			o.setState(WaitingFocusLock)
		}

	case WaitingFocusLock:
		if r.AF.Converged() && r.AE.Converged() {
			o.captureStill(ctx)
			return
		}
		if !r.AE.Converged() {
			if err := o.hw.TriggerPrecapture(); err != nil {
				o.onError(fmt.Errorf("trigger precapture: %w", err))
				return
			}
			o.setState(WaitingPrecapture)
		}

	case WaitingPrecapture:
		if r.AE.precaptureAcknowledged() {
			o.setState(WaitingNonPrecapture)
		}

	case WaitingNonPrecapture:
		if r.AE != AEPrecapture {
			o.captureStill(ctx)
		}
	}
}

// captureStill starts a new epoch of samples and requests the still.
func (o *Orchestrator) captureStill(ctx context.Context) {
	o.setState(PictureTaken)

	o.cycle++
	o.current = &pending{cycle: o.cycle, wallMillis: o.clock.NowMillis()}

	o.buf.Clear()
	o.buf.StartCollecting()

	if o.opts.PreCaptureLead > 0 {
		o.postAfter(ctx, o.opts.PreCaptureLead, leadElapsedEvent{cycle: o.cycle})
		return
	}
	o.issueStill()
}

func (o *Orchestrator) issueStill() {
	if err := o.hw.CaptureStill(); err != nil {
		o.onError(fmt.Errorf("capture still: %w", err))
	}
}

func (o *Orchestrator) onStillStarted(frame, ts int64) {
	p := o.current
	if p == nil || p.started {
		o.logger.Debug("capture: ignoring still start", "frame", frame)
		return
	}
	p.started = true
	p.frame = frame
	p.exposure.Start = ts
	if p.image != nil && p.image.Frame != frame {
		o.logger.Warn("capture: image from another frame, dropping", "frame", p.image.Frame, "expected", frame)
		p.image = nil
	}
	if o.loc != nil {
		p.location, p.hasFix = o.loc.CurrentLocation()
	}
}

func (o *Orchestrator) onStillCompleted(ctx context.Context, frame, exposure int64) {
	p := o.current
	if p == nil || !p.started || p.completed || frame != p.frame {
		o.logger.Debug("capture: ignoring completion", "frame", frame)
		return
	}

	worst := int64(o.opts.WorstCaseWindow)
	frameWindow := worst
	if o.opts.DynamicWindow && p.hasFix {
		frameWindow = window.Dynamic(p.location.Speed, p.location.HasSpeed, worst)
	}
	p.exposure.Exposure = exposure
	p.exposure.FrameWindow = frameWindow

	if !p.exposure.Valid() {
		o.closeWindow()
		return
	}
	_, end := p.exposure.Bounds()
	if wait := end - o.clock.NowNanos(); wait > 0 {
		o.postAfter(ctx, time.Duration(wait), windowClosedEvent{cycle: p.cycle})
		return
	}
	o.closeWindow()
}

// closeWindow stops sampling and reduces the window of the current capture.
func (o *Orchestrator) closeWindow() {
	p := o.current
	o.buf.StopCollecting()

	snap := o.buf.Snapshot()
	p.rng, p.valid = o.resolver.Resolve(snap, p.exposure)
	if p.valid {
		start, _ := p.exposure.Bounds()
		p.fragment = features.AggregateWindow(snap.Samples[p.rng.Start:p.rng.End], start)
	}
	p.completed = true

	o.setState(Preview)
	if err := o.hw.StartPreview(); err != nil {
		o.logger.Error("capture: restart preview", "error", err)
	}
	o.tryPersist()
}

// tryPersist writes the current capture once both its image and its
// samples are available, then starts the next cycle if still active.
func (o *Orchestrator) tryPersist() {
	p := o.current
	if p == nil || !p.completed || p.image == nil {
		return
	}
	o.current = nil

	if reason := o.skipReason(p); reason != "" {
		o.skipped.Add(1)
		o.logger.Info("capture: frame skipped", "frame", p.frame, "reason", reason)
	} else {
		o.persist(p)
	}

	if o.active {
		o.setState(WaitingFocusLock)
	}
}

func (o *Orchestrator) skipReason(p *pending) string {
	switch {
	case !p.hasFix:
		return "no location"
	case p.exposure.Exposure == 0:
		return "no exposure time"
	case !p.valid:
		return "exposure longer than frame window"
	case p.location.Speed*3.6 < o.opts.MinSpeedKmh:
		return "too slow"
	case p.rng.Empty():
		return "no motion samples"
	}
	return ""
}

func (o *Orchestrator) persist(p *pending) {
	name := fmt.Sprintf("%d.jpg", p.wallMillis)
	path, err := o.images.SaveImage(name, p.image.Data)
	if err != nil {
		o.failed.Add(1)
		o.logger.Error("capture: save image", "name", name, "error", err)
		return
	}

	start, end := p.exposure.Bounds()
	o.sequence++
	rec := features.Record{
		SessionID:          o.opts.SessionID,
		Sequence:           o.sequence,
		TimestampMillis:    p.wallMillis,
		Latitude:           p.location.Latitude,
		Longitude:          p.location.Longitude,
		Altitude:           p.location.Altitude,
		SpeedKmh:           p.location.Speed * 3.6,
		SpeedAccuracy:      p.location.SpeedAccuracy,
		LocationTimeMillis: p.location.TimeMillis,
		ExposureStart:      p.exposure.Start,
		ExposureDuration:   p.exposure.Exposure,
		FrameWindow:        p.exposure.FrameWindow,
		WindowStart:        start,
		WindowEnd:          end,
		Fragment:           p.fragment,
		ImageFile:          name,
	}
	if err := o.sink.AppendRecord(rec); err != nil {
		o.failed.Add(1)
		o.logger.Error("capture: append record", "sequence", rec.Sequence, "error", err)
		return
	}
	o.persisted.Add(1)
	o.logger.Debug("capture: record persisted", "sequence", rec.Sequence, "image", path,
		"samples", rec.SampleCount, "speed_kmh", rec.SpeedKmh)
}

// onError abandons the capture in flight and returns to Preview.
func (o *Orchestrator) onError(err error) {
	o.logger.Error("capture: hardware error", "state", o.State(), "error", err)
	o.buf.StopCollecting()
	if o.current != nil {
		o.failed.Add(1)
		o.current = nil
	}
	o.setState(Preview)
	if err := o.hw.StartPreview(); err != nil {
		o.logger.Error("capture: restart preview", "error", err)
	}
}
