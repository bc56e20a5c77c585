package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestWrapPreservesMarkerAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrFilesystem, "sync", "link", "create hardlink", cause)

	if !errors.Is(err, ErrFilesystem) {
		t.Fatalf("marker lost: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost: %v", err)
	}
	want := "filesystem error: sync: link: create hardlink: disk full"
	if err.Error() != want {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := Wrap(ErrConfiguration, "daemon", "", "missing url", nil)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("marker lost: %v", err)
	}
	if err.Error() != "configuration error: daemon: missing url" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "", "", "", errors.New("boom"))
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("err = %v, want transient marker", err)
	}
}

func TestIsFatal(t *testing.T) {
	fatal := []error{ErrConfiguration, ErrPathSafety, ErrConnectivity}
	for _, sentinel := range fatal {
		if !IsFatal(fmt.Errorf("wrapped: %w", sentinel)) {
			t.Errorf("IsFatal(%v) = false, want true", sentinel)
		}
	}
	nonFatal := []error{ErrFilesystem, ErrReconcile, ErrValidation, ErrNotFound, ErrTransient, errors.New("plain")}
	for _, err := range nonFatal {
		if IsFatal(err) {
			t.Errorf("IsFatal(%v) = true, want false", err)
		}
	}
}

func TestContextAnnotations(t *testing.T) {
	ctx := WithStage(context.Background(), "reconcile")
	ctx = WithPath(ctx, "Movies/Heat (1995)")
	ctx = WithRunID(ctx, "run-1")

	if stage, ok := StageFromContext(ctx); !ok || stage != "reconcile" {
		t.Fatalf("stage = %q, %v", stage, ok)
	}
	if path, ok := PathFromContext(ctx); !ok || path != "Movies/Heat (1995)" {
		t.Fatalf("path = %q, %v", path, ok)
	}
	if id, ok := RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("run id = %q, %v", id, ok)
	}
}

func TestContextIgnoresEmptyValues(t *testing.T) {
	ctx := WithStage(context.Background(), "")
	if _, ok := StageFromContext(ctx); ok {
		t.Fatal("empty stage should not annotate")
	}
}
