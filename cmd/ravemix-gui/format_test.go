package main

import (
	"context"
	"errors"
	"testing"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/catalog"
	"github.com/oukeidos/ravemix/internal/recorder"
	"github.com/oukeidos/ravemix/internal/workflow"
)

func TestElapsedText(t *testing.T) {
	cases := []struct {
		name string
		st   recorder.Status
		want string
	}{
		{name: "idle", st: recorder.Status{}, want: ""},
		{name: "starting", st: recorder.Status{Indeterminate: true}, want: "Starting..."},
		{name: "seconds", st: recorder.Status{State: recorder.Recording, Elapsed: 7}, want: "0:07"},
		{name: "minutes", st: recorder.Status{State: recorder.Recording, Elapsed: 75}, want: "1:15"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := elapsedText(tc.st); got != tc.want {
				t.Fatalf("elapsedText() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestProbeText(t *testing.T) {
	if probeText(workflow.ProbeConnected) != "Connected" || probeText(workflow.ProbeFailed) != "Unreachable" {
		t.Fatalf("unexpected probe labels")
	}
	if probeText(workflow.ProbeUnknown) != "Not checked" {
		t.Fatalf("unexpected label for unknown state")
	}
}

func TestEntryLabel(t *testing.T) {
	unsaved := catalog.Entry{URI: "/tmp/capture.wav", Origin: catalog.OriginRecorded}
	if got := entryLabel(unsaved); got != "New recording (unsaved)" {
		t.Fatalf("unexpected unsaved label %q", got)
	}
	saved := catalog.Entry{URI: "/r/take.wav", Name: "take", Origin: catalog.OriginRecorded}
	if got := entryLabel(saved); got != "take  ·  recorded" {
		t.Fatalf("unexpected saved label %q", got)
	}
}

func TestIndexOf(t *testing.T) {
	a := catalog.Entry{URI: "/a", Name: "a", Origin: catalog.OriginDefault}
	b := catalog.Entry{URI: "/b", Name: "b", Origin: catalog.OriginImported}
	entries := []catalog.Entry{a, b}
	if indexOf(entries, b) != 1 || indexOf(entries, catalog.Entry{URI: "/c"}) != -1 {
		t.Fatalf("unexpected indexOf results")
	}
}

func TestPickNameAndType(t *testing.T) {
	if got := pickName("drum loop.mp3", ".mp3"); got != "drum loop" {
		t.Fatalf("pickName() = %q", got)
	}
	if got := pickType("drum loop.mp3", "application/octet-stream"); got != "audio/mpeg" {
		t.Fatalf("pickType() = %q", got)
	}
	if got := pickType("content-id", "audio/ogg"); got != "audio/ogg" {
		t.Fatalf("expected reported type to be kept, got %q", got)
	}
}

func TestUserMessage(t *testing.T) {
	if userMessage(apperrors.Cancelled(context.Canceled)) != "" {
		t.Fatalf("cancellation should be silent")
	}
	if got := userMessage(apperrors.New(apperrors.KindNameTaken, "", nil)); got != "This name is already taken." {
		t.Fatalf("unexpected message %q", got)
	}
	if userMessage(errors.New("boom")) == "" {
		t.Fatalf("plain errors need a message")
	}
}
