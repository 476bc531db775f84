// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package camera

import (
	"bytes"
	"context"
	"image/jpeg"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/bikepath_logger/internal/capture"
	"github.com/relabs-tech/bikepath_logger/internal/features"
	"github.com/relabs-tech/bikepath_logger/internal/gps"
	"github.com/relabs-tech/bikepath_logger/internal/motion"
)

type recorder struct {
	mu        sync.Mutex
	results   []capture.CaptureResult
	started   []int64
	completed []int64
	images    []capture.Image
	errs      []error
}

func (r *recorder) OnCaptureResult(c capture.CaptureResult) {
	r.mu.Lock()
	r.results = append(r.results, c)
	r.mu.Unlock()
}

func (r *recorder) OnStillStarted(frame, ts int64) {
	r.mu.Lock()
	r.started = append(r.started, frame)
	r.mu.Unlock()
}

func (r *recorder) OnStillCompleted(frame, exposure int64) {
	r.mu.Lock()
	r.completed = append(r.completed, frame)
	r.mu.Unlock()
}

func (r *recorder) OnImageAvailable(img capture.Image) {
	r.mu.Lock()
	r.images = append(r.images, img)
	r.mu.Unlock()
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func newTestSimulator() *Simulator {
	opts := DefaultOptions()
	opts.FrameInterval = 2 * time.Millisecond
	opts.Exposure = time.Millisecond
	return NewSimulator(capture.NewSystemClock(), opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSimulator_PreviewConverges(t *testing.T) {
	s := newTestSimulator()
	rec := &recorder{}
	if err := s.Open(context.Background(), rec); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if err := s.StartPreview(); err != nil {
		t.Fatalf("StartPreview: %v", err)
	}

	waitFor(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.results) > 5
	})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.results[0].AE != capture.AESearching {
		t.Errorf("expected AE searching first, got %s", rec.results[0].AE)
	}
	if last := rec.results[len(rec.results)-1]; last.AE != capture.AEConverged {
		t.Errorf("expected AE converged eventually, got %s", last.AE)
	}
}

func TestSimulator_Still(t *testing.T) {
	s := newTestSimulator()
	rec := &recorder{}
	if err := s.Open(context.Background(), rec); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.CaptureStill(); err != nil {
		t.Fatalf("CaptureStill: %v", err)
	}
	waitFor(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.images) == 1
	})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.started) != 1 || len(rec.completed) != 1 || rec.started[0] != rec.completed[0] {
		t.Fatalf("expected matching start/completion frames, got %v / %v", rec.started, rec.completed)
	}
	img, err := jpeg.Decode(bytes.NewReader(rec.images[0].Data))
	if err != nil {
		t.Fatalf("decode still: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Errorf("unexpected size %v", b)
	}
}

func TestSimulator_NotOpen(t *testing.T) {
	s := newTestSimulator()
	if err := s.CaptureStill(); err == nil {
		t.Errorf("expected error when capturing on a closed camera")
	}
	if err := s.Close(); err != nil {
		t.Errorf("closing a closed camera: %v", err)
	}
}

type memSink struct {
	mu      sync.Mutex
	records []features.Record
	images  int
}

func (m *memSink) AppendRecord(r features.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *memSink) SaveImage(name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images++
	return name, nil
}

func (m *memSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type fixedLocation struct{}

func (fixedLocation) CurrentLocation() (gps.Location, bool) {
	return gps.Location{Latitude: 48.1, Longitude: 11.5, Speed: 10, HasSpeed: true}, true
}

func TestSimulator_DrivesOrchestrator(t *testing.T) {
	s := newTestSimulator()
	buf := motion.NewBuffer()
	out := &memSink{}

	opts := capture.DefaultOptions()
	opts.PreCaptureLead = 0
	o := capture.New(capture.Deps{
		Hardware: s,
		Buffer:   buf,
		Clock:    s.clock,
		Location: fixedLocation{},
		Sink:     out,
		Images:   out,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Sensor stand-in: one sample every millisecond on the shared clock.
	go func() {
		tick := time.NewTicker(time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				buf.Append(motion.Sample{TimestampNanos: s.clock.NowNanos()})
			}
		}
	}()

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	o.Start()

	waitFor(t, func() bool { return out.count() >= 2 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	for i, r := range out.records {
		if r.Sequence != uint64(i+1) {
			t.Errorf("record %d: expected sequence %d, got %d", i, i+1, r.Sequence)
		}
		if r.SampleCount == 0 {
			t.Errorf("record %d: expected motion samples in the window", i)
		}
		if r.FrameWindow != int64(100*time.Millisecond) {
			t.Errorf("record %d: expected 100ms window, got %d", i, r.FrameWindow)
		}
	}
	if out.images < len(out.records) {
		t.Errorf("expected an image per record, got %d images", out.images)
	}
}
