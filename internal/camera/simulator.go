// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package camera provides a simulated camera for bench runs without a
// real capture device.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/relabs-tech/bikepath_logger/internal/capture"
)

// Options shape the simulated camera.
type Options struct {
	FrameInterval    time.Duration // preview result period
	ConvergeAfter    int           // preview results before AE converges
	PrecaptureFrames int           // results reporting AE precapture after a trigger
	Exposure         time.Duration // still exposure time
	Width, Height    int
}

// DefaultOptions returns a 30 fps camera with a 10ms exposure.
func DefaultOptions() Options {
	return Options{
		FrameInterval:    33 * time.Millisecond,
		ConvergeAfter:    3,
		PrecaptureFrames: 2,
		Exposure:         10 * time.Millisecond,
		Width:            320,
		Height:           240,
	}
}

// Simulator implements capture.Hardware. Timestamps come from the same
// clock as the motion samples.
type Simulator struct {
	clock  capture.Clock
	logger *slog.Logger
	opts   Options

	mu         sync.Mutex
	listener   capture.Listener
	frame      int64
	results    int
	precapture int
	previewing bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewSimulator returns a closed simulator.
func NewSimulator(clock capture.Clock, opts Options, logger *slog.Logger) *Simulator {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultOptions().FrameInterval
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = DefaultOptions().Width, DefaultOptions().Height
	}
	return &Simulator{clock: clock, opts: opts, logger: logger}
}

func (s *Simulator) Open(ctx context.Context, l capture.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("camera already open")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.listener = l
	s.results = 0

	s.wg.Add(1)
	go s.previewLoop(ctx)
	s.logger.Info("camera: simulator open", "width", s.opts.Width, "height", s.opts.Height)
	return nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.previewing = false
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	s.wg.Wait()
	return nil
}

func (s *Simulator) StartPreview() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return errors.New("camera not open")
	}
	s.previewing = true
	return nil
}

func (s *Simulator) TriggerPrecapture() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return errors.New("camera not open")
	}
	s.precapture = s.opts.PrecaptureFrames
	return nil
}

func (s *Simulator) CaptureStill() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return errors.New("camera not open")
	}
	s.previewing = false
	s.frame++
	frame := s.frame
	l := s.listener
	s.mu.Unlock()

	s.wg.Add(1)
	go s.still(l, frame)
	return nil
}

func (s *Simulator) previewLoop(ctx context.Context) {
	defer s.wg.Done()
	t := time.NewTicker(s.opts.FrameInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		s.mu.Lock()
		if !s.previewing {
			s.mu.Unlock()
			continue
		}
		s.frame++
		s.results++
		r := capture.CaptureResult{Frame: s.frame, AF: capture.AFFocusedLocked, AE: capture.AEConverged}
		switch {
		case s.precapture > 0:
			s.precapture--
			r.AE = capture.AEPrecapture
		case s.results <= s.opts.ConvergeAfter:
			r.AE = capture.AESearching
		}
		l := s.listener
		s.mu.Unlock()

		l.OnCaptureResult(r)
	}
}

func (s *Simulator) still(l capture.Listener, frame int64) {
	defer s.wg.Done()

	start := s.clock.NowNanos()
	l.OnStillStarted(frame, start)
	time.Sleep(s.opts.Exposure)
	l.OnStillCompleted(frame, int64(s.opts.Exposure))

	data, err := s.render(frame, s.clock.NowMillis())
	if err != nil {
		l.OnError(fmt.Errorf("encode frame %d: %w", frame, err))
		return
	}
	l.OnImageAvailable(capture.Image{Frame: frame, TimestampNanos: start, Data: data})
}

// render draws a gray frame stamped with the frame number and time.
func (s *Simulator) render(frame, millis int64) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, s.opts.Width, s.opts.Height))
	shade := uint8(64 + frame%128)
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: shade, G: shade, B: shade, A: 255}}, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(8, 20),
	}
	d.DrawString(fmt.Sprintf("frame %d", frame))
	d.Dot = fixed.P(8, 36)
	d.DrawString(time.UnixMilli(millis).UTC().Format("15:04:05.000"))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
