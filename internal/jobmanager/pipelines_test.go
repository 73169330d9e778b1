package jobmanager

import (
	"archive/zip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/allanyiin/slidemanager/internal/catalog"
	"github.com/allanyiin/slidemanager/internal/eventbus"
	"github.com/allanyiin/slidemanager/internal/textembed"
)

func newTestManager(t *testing.T) (*Manager, *catalog.Store, *eventbus.Bus, string) {
	t.Helper()
	root := t.TempDir()
	store, err := catalog.Open(root)
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	bus := eventbus.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, bus, root, "", log), store, bus, root
}

// seedJob registers a job row and the single progress-bearer task a
// pipeline run expects to find.
func seedJob(t *testing.T, store *catalog.Store, jobID, root string, kind catalog.TaskKind) {
	t.Helper()
	ctx := context.Background()
	if err := store.InsertJob(ctx, jobID, root, `{}`); err != nil {
		t.Fatalf("inserting job: %v", err)
	}
	if _, err := store.EnqueueJobTask(ctx, jobID, kind, 0); err != nil {
		t.Fatalf("enqueueing %s task: %v", kind, err)
	}
}

// seedQueuedPages creates a file with n pages, each holding a QUEUED
// artifact of the given kind, and returns the page ids in page order.
func seedQueuedPages(t *testing.T, store *catalog.Store, path string, n int, kind catalog.ArtifactKind) []int64 {
	t.Helper()
	ctx := context.Background()
	fileID, err := store.UpsertFile(ctx, path, 1024, 100, catalog.Aspect169)
	if err != nil {
		t.Fatalf("upserting file: %v", err)
	}
	var ids []int64
	for p := 1; p <= n; p++ {
		pageID, err := store.UpsertPage(ctx, fileID, p, catalog.Aspect169, 1024, 100)
		if err != nil {
			t.Fatalf("upserting page %d: %v", p, err)
		}
		if err := store.EnsureArtifact(ctx, pageID, kind); err != nil {
			t.Fatalf("ensuring artifact: %v", err)
		}
		if err := store.SetArtifactStatus(ctx, pageID, kind, catalog.StatusQueued, ""); err != nil {
			t.Fatalf("queueing artifact: %v", err)
		}
		ids = append(ids, pageID)
	}
	return ids
}

// writeDeck builds a minimal .pptx zip with one slide XML part per entry.
func writeDeck(t *testing.T, path string, slides []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating deck: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for i, content := range slides {
		w, err := zw.Create("ppt/slides/slide" + strconv.Itoa(i+1) + ".xml")
		if err != nil {
			t.Fatalf("creating slide entry: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing slide entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing deck: %v", err)
	}
}

func textOnlyOptions() catalog.JobOptions {
	opts := catalog.DefaultJobOptions()
	opts.EnableBM25 = false
	opts.EnableThumb = false
	opts.EnableTextVec = false
	opts.EnableImgVec = false
	opts.CommitEveryPages = 1
	return opts
}

func artifactStatus(t *testing.T, store *catalog.Store, pageID int64, kind catalog.ArtifactKind) catalog.ArtifactStatus {
	t.Helper()
	statuses, err := store.ArtifactStatuses(context.Background(), pageID)
	if err != nil {
		t.Fatalf("loading artifact statuses: %v", err)
	}
	return statuses[kind]
}

func waitForArtifactEvent(t *testing.T, ch chan eventbus.Event) eventbus.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == "artifact_state_changed" {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for an artifact_state_changed event")
		}
	}
}

func TestRunTextAndBM25_CorruptSlideIsolated(t *testing.T) {
	m, store, bus, root := newTestManager(t)
	ctx := context.Background()

	deck := filepath.Join(root, "deck.pptx")
	writeDeck(t, deck, []string{
		"<sld><txBody><t>First slide</t></txBody></sld>",
		"<sld><t>broken",
		"<sld><txBody><t>Third slide</t></txBody></sld>",
	})
	pageIDs := seedQueuedPages(t, store, deck, 3, catalog.KindText)
	seedJob(t, store, "J_corrupt", root, catalog.TaskText)

	ch := bus.Subscribe("J_corrupt")
	defer bus.Unsubscribe("J_corrupt", ch)

	if err := m.runTextAndBM25(ctx, "J_corrupt", textOnlyOptions(), newPauseGate()); err != nil {
		t.Fatalf("pipeline error: %v", err)
	}

	if got := artifactStatus(t, store, pageIDs[0], catalog.KindText); got != catalog.StatusReady {
		t.Errorf("page 1 text = %q, want ready", got)
	}
	if got := artifactStatus(t, store, pageIDs[2], catalog.KindText); got != catalog.StatusReady {
		t.Errorf("page 3 text = %q, want ready", got)
	}
	arts, err := store.PageArtifacts(ctx, pageIDs[1])
	if err != nil {
		t.Fatalf("loading page 2 artifacts: %v", err)
	}
	found := false
	for _, a := range arts {
		if a.Kind == catalog.KindText {
			found = true
			if a.Status != catalog.StatusError || a.ErrorCode != catalog.ErrTextExtractFail {
				t.Errorf("page 2 text = %q/%q, want error/TEXT_EXTRACT_FAIL", a.Status, a.ErrorCode)
			}
		}
	}
	if !found {
		t.Error("page 2 has no text artifact row")
	}

	// One terminal transition event per page, including the failed one.
	seen := 0
	sawError := false
	for drained := false; !drained; {
		select {
		case ev := <-ch:
			if ev.Type != "artifact_state_changed" {
				continue
			}
			seen++
			if p, ok := ev.Payload.(map[string]any); ok && p["status"] == catalog.StatusError {
				sawError = true
			}
		default:
			drained = true
		}
	}
	if seen != 3 {
		t.Errorf("saw %d artifact_state_changed events, want 3", seen)
	}
	if !sawError {
		t.Error("no artifact_state_changed event carried the error status")
	}
}

func TestRunTextEmbeddings_CacheHitSkipsProvider(t *testing.T) {
	m, store, _, root := newTestManager(t)
	ctx := context.Background()

	deck := filepath.Join(root, "deck.pptx")
	pageIDs := seedQueuedPages(t, store, deck, 2, catalog.KindTextVec)
	for _, pageID := range pageIDs {
		if err := store.UpsertPageText(ctx, pageID, "hello world", "hello world", "sig1"); err != nil {
			t.Fatalf("seeding page text: %v", err)
		}
	}
	seedJob(t, store, "J_cache", root, catalog.TaskTextVec)

	opts := catalog.DefaultJobOptions()
	opts.Embed.MaxRetries = 0
	model := opts.Embed.ModelText
	if err := store.UpsertTextEmbeddingCache(ctx, model, "sig1", 2, textembed.PackF32([]float32{0.25, -0.5})); err != nil {
		t.Fatalf("seeding embedding cache: %v", err)
	}

	// The manager has no provider credential: a cache miss would fail with
	// EMBED_FAIL, so READY artifacts prove the provider was never needed.
	if err := m.runTextEmbeddings(ctx, "J_cache", opts, newPauseGate()); err != nil {
		t.Fatalf("pipeline error: %v", err)
	}

	for i, pageID := range pageIDs {
		if got := artifactStatus(t, store, pageID, catalog.KindTextVec); got != catalog.StatusReady {
			t.Errorf("page %d text_vec = %q, want ready", i+1, got)
		}
		sig, ok, err := store.PageTextEmbeddingSig(ctx, pageID, model)
		if err != nil || !ok {
			t.Fatalf("page %d has no embedding link (err=%v)", i+1, err)
		}
		if sig != "sig1" {
			t.Errorf("page %d linked to %q, want sig1", i+1, sig)
		}
	}
}

func TestRunTextEmbeddings_EmptyTextGetsZeroVectorSentinel(t *testing.T) {
	m, store, _, root := newTestManager(t)
	ctx := context.Background()

	deck := filepath.Join(root, "deck.pptx")
	pageIDs := seedQueuedPages(t, store, deck, 1, catalog.KindTextVec)
	if err := store.UpsertPageText(ctx, pageIDs[0], "", "", ""); err != nil {
		t.Fatalf("seeding empty page text: %v", err)
	}
	seedJob(t, store, "J_zero", root, catalog.TaskTextVec)

	opts := catalog.DefaultJobOptions()
	if err := m.runTextEmbeddings(ctx, "J_zero", opts, newPauseGate()); err != nil {
		t.Fatalf("pipeline error: %v", err)
	}

	if got := artifactStatus(t, store, pageIDs[0], catalog.KindTextVec); got != catalog.StatusReady {
		t.Fatalf("text_vec = %q, want ready", got)
	}
	sig, ok, err := store.PageTextEmbeddingSig(ctx, pageIDs[0], opts.Embed.ModelText)
	if err != nil || !ok {
		t.Fatalf("no embedding link for the empty page (err=%v)", err)
	}
	if !strings.HasPrefix(sig, textembed.ZeroVectorSentinelPrefix) {
		t.Errorf("cache signature = %q, want %s prefix", sig, textembed.ZeroVectorSentinelPrefix)
	}
}

func TestRunTextAndBM25_PauseResumeMidPipeline(t *testing.T) {
	m, store, bus, root := newTestManager(t)
	ctx := context.Background()

	deck := filepath.Join(root, "deck.pptx")
	pageIDs := seedQueuedPages(t, store, deck, 5, catalog.KindText)
	seedJob(t, store, "J_pause", root, catalog.TaskText)

	// Page 1 extracts immediately; every later page blocks until released,
	// holding the pipeline mid-flight while the pause window is asserted.
	release := make(chan struct{})
	var calls atomic.Int32
	orig := extractPage
	extractPage = func(path string, pageNo int) (string, string, string, error) {
		if calls.Add(1) > 1 {
			<-release
		}
		return "slide", "slide", "sig" + strconv.Itoa(pageNo), nil
	}
	t.Cleanup(func() { extractPage = orig })

	ch := bus.Subscribe("J_pause")
	defer bus.Unsubscribe("J_pause", ch)

	gate := newPauseGate()
	done := make(chan error, 1)
	go func() { done <- m.runTextAndBM25(ctx, "J_pause", textOnlyOptions(), gate) }()

	waitForArtifactEvent(t, ch)
	gate.pause()

	quiet := time.After(200 * time.Millisecond)
	for asserting := true; asserting; {
		select {
		case ev := <-ch:
			if ev.Type == "artifact_state_changed" {
				t.Fatalf("artifact event arrived while paused: seq %d", ev.Seq)
			}
		case <-quiet:
			asserting = false
		}
	}

	gate.resume()
	close(release)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("pipeline error after resume: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not complete after resume")
	}

	for i, pageID := range pageIDs {
		if got := artifactStatus(t, store, pageID, catalog.KindText); got != catalog.StatusReady {
			t.Errorf("page %d text = %q, want ready", i+1, got)
		}
	}
}
