package main

import (
	"strings"
	"testing"
)

func TestWriteStatusAlignsLabelsPerSection(t *testing.T) {
	var buf strings.Builder
	writeStatus(&buf, []statusSection{
		{title: "Daemon", lines: []statusLine{
			{label: "Daemon", state: stateInfo, message: "not running"},
		}},
		{title: "Services", lines: []statusLine{
			{label: "Movies", state: stateOK, message: "http://radarr.local"},
			{label: "TV", state: stateInfo, message: "not configured"},
		}},
	}, false)
	out := buf.String()

	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "  Daemon: [INFO] not running")
	// Labels pad to the widest of their own section, not globally.
	requireContains(t, out, "  Movies: [OK] http://radarr.local")
	requireContains(t, out, "  TV:     [INFO] not configured")
	requireContains(t, out, "\n\n== Services ==")
}

func TestWriteStatusColorsWholeLine(t *testing.T) {
	var buf strings.Builder
	writeStatus(&buf, []statusSection{
		{title: "Queue", lines: []statusLine{
			{label: "Items", state: stateWarn, message: "2 failed"},
		}},
	}, true)
	out := buf.String()

	requireContains(t, out, ansiYellow+"  Items: [WARN] 2 failed"+ansiReset)
	requireContains(t, out, ansiBlue+"== Queue =="+ansiReset)
}
