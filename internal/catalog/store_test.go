package catalog

import (
	"context"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpen_CreatesSchema(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	n, err := store.CountFiles(ctx, "")
	if err != nil {
		t.Fatalf("CountFiles: %v", err)
	}
	if n != 0 {
		t.Errorf("expected an empty catalog, got %d files", n)
	}
}

func TestFileAndPageLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	fileID, err := store.UpsertFile(ctx, "/lib/deck.pptx", 1024, 100, AspectUnknown)
	if err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}

	pageID, err := store.UpsertPage(ctx, fileID, 1, Aspect169, 1024, 100)
	if err != nil {
		t.Fatalf("UpsertPage: %v", err)
	}

	if err := store.EnsureArtifact(ctx, pageID, KindText); err != nil {
		t.Fatalf("EnsureArtifact: %v", err)
	}

	statuses, err := store.ArtifactStatuses(ctx, pageID)
	if err != nil {
		t.Fatalf("ArtifactStatuses: %v", err)
	}
	if got := statuses[KindText]; got != StatusMissing {
		t.Errorf("expected a freshly ensured artifact to be missing, got %q", got)
	}

	if err := store.SetArtifactStatus(ctx, pageID, KindText, StatusReady, ""); err != nil {
		t.Fatalf("SetArtifactStatus: %v", err)
	}
	statuses, err = store.ArtifactStatuses(ctx, pageID)
	if err != nil {
		t.Fatalf("ArtifactStatuses: %v", err)
	}
	if got := statuses[KindText]; got != StatusReady {
		t.Errorf("expected ready, got %q", got)
	}

	page, filePath, err := store.PageByID(ctx, pageID)
	if err != nil {
		t.Fatalf("PageByID: %v", err)
	}
	if page.FileID != fileID || filePath != "/lib/deck.pptx" {
		t.Errorf("unexpected page/file join: %+v path=%q", page, filePath)
	}
}

func TestUpsertFile_IsIdempotentByPath(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id1, err := store.UpsertFile(ctx, "/lib/deck.pptx", 1024, 100, AspectUnknown)
	if err != nil {
		t.Fatalf("first UpsertFile: %v", err)
	}
	id2, err := store.UpsertFile(ctx, "/lib/deck.pptx", 2048, 200, Aspect43)
	if err != nil {
		t.Fatalf("second UpsertFile: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected the same file row on re-scan, got %d and %d", id1, id2)
	}

	file, err := store.FileByID(ctx, id1)
	if err != nil {
		t.Fatalf("FileByID: %v", err)
	}
	if file.SizeBytes != 2048 || file.Aspect != Aspect43 {
		t.Errorf("expected the row to reflect the latest scan, got %+v", file)
	}
}

func TestJobLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.InsertJob(ctx, "J1", "/lib", `{}`); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}

	job, err := store.JobByID(ctx, "J1")
	if err != nil {
		t.Fatalf("JobByID: %v", err)
	}
	if job.Status != JobCreated {
		t.Errorf("expected a freshly inserted job to be CREATED, got %q", job.Status)
	}

	if err := store.StartJob(ctx, "J1"); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	job, err = store.JobByID(ctx, "J1")
	if err != nil {
		t.Fatalf("JobByID after start: %v", err)
	}
	if job.Status != JobRunning || job.StartedEpoch == 0 {
		t.Errorf("expected RUNNING with a started_at stamp, got %+v", job)
	}

	if err := store.FinishJob(ctx, "J1", JobCompleted); err != nil {
		t.Fatalf("FinishJob: %v", err)
	}
	job, err = store.JobByID(ctx, "J1")
	if err != nil {
		t.Fatalf("JobByID after finish: %v", err)
	}
	if job.Status != JobCompleted || job.FinishedEpoch == 0 {
		t.Errorf("expected COMPLETED with a finished_at stamp, got %+v", job)
	}
}

func TestJobByID_NotFound(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.JobByID(context.Background(), "missing"); err == nil {
		t.Error("expected an error for an unknown job id")
	}
}

func TestArtifactStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status       ArtifactStatus
		terminal     bool
		terminalGood bool
	}{
		{StatusMissing, false, false},
		{StatusQueued, false, false},
		{StatusRunning, false, false},
		{StatusReady, true, true},
		{StatusSkipped, true, true},
		{StatusError, true, false},
		{StatusCancelled, true, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			if got := tc.status.IsTerminal(); got != tc.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tc.terminal)
			}
			if got := tc.status.IsTerminalSuccess(); got != tc.terminalGood {
				t.Errorf("IsTerminalSuccess() = %v, want %v", got, tc.terminalGood)
			}
		})
	}
}
