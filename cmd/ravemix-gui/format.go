package main

import (
	"fmt"
	"strings"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/catalog"
	"github.com/oukeidos/ravemix/internal/recorder"
	"github.com/oukeidos/ravemix/internal/workflow"
)

func probeText(s workflow.ProbeState) string {
	switch s {
	case workflow.ProbeConnecting:
		return "Connecting..."
	case workflow.ProbeConnected:
		return "Connected"
	case workflow.ProbeFailed:
		return "Unreachable"
	default:
		return "Not checked"
	}
}

func elapsedText(st recorder.Status) string {
	switch {
	case st.Indeterminate:
		return "Starting..."
	case st.State == recorder.Recording:
		return fmt.Sprintf("%d:%02d", st.Elapsed/60, st.Elapsed%60)
	default:
		return ""
	}
}

func originText(o catalog.Origin) string {
	switch o {
	case catalog.OriginDefault:
		return "bundled"
	case catalog.OriginImported:
		return "imported"
	case catalog.OriginRecorded:
		return "recorded"
	case catalog.OriginDownloaded:
		return "remix"
	}
	return string(o)
}

func entryLabel(e catalog.Entry) string {
	if e.Unsaved() {
		return "New recording (unsaved)"
	}
	return e.DisplayName() + "  ·  " + originText(e.Origin)
}

func indexOf(entries []catalog.Entry, e catalog.Entry) int {
	for i, cur := range entries {
		if cur == e {
			return i
		}
	}
	return -1
}

// pickName derives a library name from a picked file's name.
func pickName(name, ext string) string {
	return strings.TrimSpace(strings.TrimSuffix(name, ext))
}

// pickType prefers the extension table over what the picker reports, which
// is often application/octet-stream for audio.
func pickType(name, reported string) string {
	if t := catalog.TypeByExtension(name); t != "" {
		if _, ok := catalog.AudioSubtype(t); ok {
			return t
		}
	}
	return reported
}

// userMessage is what a dialog shows for err. Cancellation shows nothing.
func userMessage(err error) string {
	if err == nil || apperrors.IsCancelled(err) {
		return ""
	}
	return apperrors.PublicMessage(err)
}
