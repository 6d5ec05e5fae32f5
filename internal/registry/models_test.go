package registry_test

import (
	"testing"

	"reframe/internal/registry"
)

func TestStatusTerminal(t *testing.T) {
	cases := []struct {
		status   registry.Status
		terminal bool
	}{
		{registry.StatusQueued, false},
		{registry.Status("extracting_frames"), false},
		{registry.Status("reconstructing"), false},
		{registry.StatusCompleted, true},
		{registry.StatusFailed, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.terminal {
			t.Errorf("%s: Terminal() = %v, want %v", tc.status, got, tc.terminal)
		}
	}
}

func TestParseStatus(t *testing.T) {
	status, ok := registry.ParseStatus("  Estimating_Pose ")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if status != registry.Status("estimating_pose") {
		t.Fatalf("unexpected status %q", status)
	}

	if _, ok := registry.ParseStatus("   "); ok {
		t.Fatal("expected blank status to be rejected")
	}
}

func TestJobClone(t *testing.T) {
	var nilJob *registry.Job
	if nilJob.Clone() != nil {
		t.Fatal("nil job clone must be nil")
	}

	job := &registry.Job{ID: "job-1", Status: registry.StatusQueued}
	clone := job.Clone()
	clone.Status = registry.StatusFailed
	if job.Status != registry.StatusQueued {
		t.Fatal("clone must not alias the original")
	}
}
