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
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Mode controls how richly output is rendered.
type Mode string

const (
	// ModeRich enables colors, icons, boxes and animated progress.
	ModeRich Mode = "rich"

	// ModePlain keeps icons and table borders but drops all color.
	ModePlain Mode = "plain"

	// ModeMachine emits tab-separated text suitable for scripting.
	ModeMachine Mode = "machine"
)

// ModeEnv overrides terminal detection when set.
const ModeEnv = "BANDITLAB_OUTPUT"

// ParseMode converts a flag or env value to a Mode. Unknown values map to
// ModePlain.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rich", "full", "color":
		return ModeRich
	case "machine", "quiet", "q", "tsv":
		return ModeMachine
	default:
		return ModePlain
	}
}

// DetectMode picks a Mode for w.
//
// Description:
//
//	BANDITLAB_OUTPUT wins when set. Otherwise NO_COLOR forces ModePlain, a
//	terminal gets ModeRich, and anything else (pipes, files, buffers) gets
//	ModePlain.
func DetectMode(w io.Writer) Mode {
	if v := os.Getenv(ModeEnv); v != "" {
		return ParseMode(v)
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return ModePlain
	}
	if isTerminal(w) {
		return ModeRich
	}
	return ModePlain
}

// isTerminal reports whether w is a file descriptor attached to a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
