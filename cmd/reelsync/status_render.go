package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// probeState grades the outcome of one status probe.
type probeState int

const (
	stateInfo probeState = iota
	stateOK
	stateWarn
	stateError
)

func (s probeState) label() string {
	switch s {
	case stateOK:
		return "OK"
	case stateWarn:
		return "WARN"
	case stateError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (s probeState) color() string {
	switch s {
	case stateOK:
		return ansiGreen
	case stateWarn:
		return ansiYellow
	case stateError:
		return ansiRed
	default:
		return ansiBlue
	}
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// statusLine is one labeled probe result.
type statusLine struct {
	label   string
	state   probeState
	message string
}

// statusSection groups related probe lines under a heading. The status
// command builds its Configuration, Daemon, Queue, and Services blocks as
// sections and renders them in one pass.
type statusSection struct {
	title string
	lines []statusLine
}

// writeStatus renders the sections. Labels pad to the widest label of
// their own section, so each block aligns independently of the others.
func writeStatus(w io.Writer, sections []statusSection, colorize bool) {
	for i, section := range sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		heading := fmt.Sprintf("== %s ==", section.title)
		if colorize {
			heading = ansiBlue + heading + ansiReset
		}
		fmt.Fprintln(w, heading)

		width := 0
		for _, line := range section.lines {
			if n := len(line.label) + 1; n > width {
				width = n
			}
		}
		for _, line := range section.lines {
			text := fmt.Sprintf("  %-*s [%s]", width, line.label+":", line.state.label())
			if line.message != "" {
				text += " " + line.message
			}
			if colorize {
				text = line.state.color() + text + ansiReset
			}
			fmt.Fprintln(w, text)
		}
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
