// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner is an animated indicator shown while a simulation runs.
//
// Only ModeRich animates. ModePlain prints the message once on Start and
// ModeMachine prints nothing until Stop.
//
// Thread Safety: Start, Stop and SetMessage may be called from different
// goroutines.
type Spinner struct {
	p        *Printer
	interval time.Duration

	mu      sync.Mutex
	message string
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewSpinner creates a spinner that writes through p.
func (p *Printer) NewSpinner(message string) *Spinner {
	return &Spinner{p: p, message: message, interval: 80 * time.Millisecond}
}

// Start begins the animation. Calling Start twice is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	switch s.p.mode {
	case ModeMachine:
		return
	case ModePlain:
		fmt.Fprintf(s.p.w, "%s...\n", s.message)
		return
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop()
}

func (s *Spinner) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-s.stop:
			fmt.Fprint(s.p.w, "\r\033[K")
			return
		case <-ticker.C:
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()
			fmt.Fprintf(s.p.w, "\r%s %s", s.p.render(Styles.Highlight, spinnerFrames[frame]), msg)
			frame = (frame + 1) % len(spinnerFrames)
		}
	}
}

// SetMessage replaces the message shown next to the spinner.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// StopWithSuccess stops and prints a success line.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	s.p.Success(message)
}

// StopWithError stops and prints an error line.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	s.p.Error(message)
}

// WithSpinner runs fn behind a spinner and reports its outcome.
func (p *Printer) WithSpinner(message string, fn func() error) error {
	spin := p.NewSpinner(message)
	spin.Start()

	if err := fn(); err != nil {
		spin.StopWithError(fmt.Sprintf("%s: %v", message, err))
		return err
	}
	spin.StopWithSuccess(message)
	return nil
}
