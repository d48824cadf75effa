// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the banditlab CLI.
//
// Output goes through a Printer bound to one writer and one Mode, so the
// same command renders colored tables on a terminal, plain tables in a
// pipe, and tab-separated rows for scripts.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style

	Header lipgloss.Style
	Cell   lipgloss.Style
	Border lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),

	Header: lipgloss.NewStyle().Bold(true).Foreground(ColorTealPrimary).Padding(0, 1),
	Cell:   lipgloss.NewStyle().Padding(0, 1),
	Border: lipgloss.NewStyle().Foreground(ColorTealDeep),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

func (i Icon) style() lipgloss.Style {
	switch i {
	case IconSuccess:
		return Styles.Success
	case IconWarning:
		return Styles.Warning
	case IconError:
		return Styles.Error
	default:
		return Styles.Muted
	}
}

// machineTag is the line prefix used for an icon in ModeMachine.
func (i Icon) machineTag() string {
	switch i {
	case IconSuccess:
		return "OK"
	case IconWarning:
		return "WARN"
	case IconError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// =============================================================================
// Printer
// =============================================================================

// Printer writes styled output to one destination.
//
// Thread Safety: Not safe for concurrent use; the CLI prints from one
// goroutine.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter creates a Printer for w. An empty mode is detected from w.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	if mode == "" {
		mode = DetectMode(w)
	}
	return &Printer{w: w, mode: mode}
}

// Mode returns the printer's rendering mode.
func (p *Printer) Mode() Mode { return p.mode }

// Writer returns the destination.
func (p *Printer) Writer() io.Writer { return p.w }

// render applies s only in ModeRich.
func (p *Printer) render(s lipgloss.Style, text string) string {
	if p.mode != ModeRich {
		return text
	}
	return s.Render(text)
}

// Title prints a heading. Silent in ModeMachine.
func (p *Printer) Title(text string) {
	if p.mode == ModeMachine {
		return
	}
	fmt.Fprintln(p.w, p.render(Styles.Title, text))
}

// Success prints a success line.
func (p *Printer) Success(text string) { p.status(IconSuccess, text) }

// Warning prints a warning line.
func (p *Printer) Warning(text string) { p.status(IconWarning, text) }

// Error prints an error line.
func (p *Printer) Error(text string) { p.status(IconError, text) }

func (p *Printer) status(icon Icon, text string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "%s: %s\n", icon.machineTag(), text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.render(icon.style(), string(icon)), p.render(icon.style(), text))
}

// Info prints an informational line.
func (p *Printer) Info(text string) {
	if p.mode == ModeMachine {
		fmt.Fprintln(p.w, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.render(Styles.Muted, "│"), text)
}

// KeyValue prints "key: value" pairs, one per line, keys aligned.
func (p *Printer) KeyValue(pairs ...[2]string) {
	width := 0
	for _, kv := range pairs {
		width = max(width, len(kv[0]))
	}
	for _, kv := range pairs {
		if p.mode == ModeMachine {
			fmt.Fprintf(p.w, "%s\t%s\n", kv[0], kv[1])
			continue
		}
		key := fmt.Sprintf("%-*s", width, kv[0])
		fmt.Fprintf(p.w, "  %s  %s\n", p.render(Styles.Muted, key), kv[1])
	}
}

// Box prints content in a rounded box with a title line.
func (p *Printer) Box(title, content string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "%s: %s\n", title, strings.ReplaceAll(content, "\n", "; "))
		return
	}
	style := Styles.Box
	if p.mode != ModeRich {
		style = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	}
	fmt.Fprintln(p.w, style.Render(p.render(Styles.Title, title)+"\n"+content))
}

// Table prints rows under headers.
//
// Description:
//
//	highlight is the index of a row to emphasize (the best run, say), or -1.
//	ModeMachine prints a header line and rows joined by tabs.
func (p *Printer) Table(headers []string, rows [][]string, highlight int) {
	fmt.Fprintln(p.w, p.TableString(headers, rows, highlight))
}

// TableString renders what Table prints, without the trailing newline.
func (p *Printer) TableString(headers []string, rows [][]string, highlight int) string {
	if p.mode == ModeMachine {
		var b strings.Builder
		b.WriteString(strings.Join(headers, "\t"))
		for _, row := range rows {
			b.WriteByte('\n')
			b.WriteString(strings.Join(row, "\t"))
		}
		return b.String()
	}

	rich := p.mode == ModeRich
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case !rich:
				return lipgloss.NewStyle().Padding(0, 1)
			case row == table.HeaderRow:
				return Styles.Header
			case row == highlight:
				return Styles.Highlight.Padding(0, 1)
			default:
				return Styles.Cell
			}
		})
	if rich {
		t = t.BorderStyle(Styles.Border)
	}
	return t.String()
}

// ProgressBar renders a bar of the given width for current/total.
func (p *Printer) ProgressBar(current, total, width int) string {
	if p.mode == ModeMachine || total <= 0 {
		return fmt.Sprintf("%d/%d", current, total)
	}
	pct := float64(current) / float64(total)
	pct = min(max(pct, 0), 1)
	filled := int(pct * float64(width))
	bar := p.render(Styles.Success, strings.Repeat("█", filled)) +
		p.render(Styles.Muted, strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, pct*100)
}
