package planner

import (
	"path/filepath"
	"testing"
)

func TestResolveCandidatesSkipsNonPPTX(t *testing.T) {
	root := t.TempDir()
	skipped := newSkipped()
	out := resolveCandidates(root, []string{filepath.Join(root, "notes.txt")}, skipped)
	if len(out) != 0 {
		t.Fatalf("expected no candidates, got %d", len(out))
	}
	if skipped.Counts[skipNonPPTX] != 1 {
		t.Errorf("expected one non_pptx skip, got %d", skipped.Counts[skipNonPPTX])
	}
}

func TestResolveCandidatesSkipsOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	skipped := newSkipped()
	out := resolveCandidates(root, []string{filepath.Join(outside, "deck.pptx")}, skipped)
	if len(out) != 0 {
		t.Fatalf("expected no candidates, got %d", len(out))
	}
	if skipped.Counts[skipOutsideRoot] != 1 {
		t.Errorf("expected one outside_root skip, got %d", skipped.Counts[skipOutsideRoot])
	}
}

func TestResolveCandidatesSkipsMissingPath(t *testing.T) {
	root := t.TempDir()
	skipped := newSkipped()
	out := resolveCandidates(root, []string{""}, skipped)
	if len(out) != 0 {
		t.Fatalf("expected no candidates, got %d", len(out))
	}
	if skipped.Counts[skipMissingPath] != 1 {
		t.Errorf("expected one missing_path skip, got %d", skipped.Counts[skipMissingPath])
	}
}

func TestResolveCandidatesSkipsNonexistentFile(t *testing.T) {
	root := t.TempDir()
	skipped := newSkipped()
	out := resolveCandidates(root, []string{filepath.Join(root, "gone.pptx")}, skipped)
	if len(out) != 0 {
		t.Fatalf("expected no candidates, got %d", len(out))
	}
	if skipped.Counts[skipMissingPath] != 1 {
		t.Errorf("expected one missing_path skip, got %d", skipped.Counts[skipMissingPath])
	}
}

func TestIsUnderRoot(t *testing.T) {
	root := "/library"
	cases := []struct {
		path string
		want bool
	}{
		{"/library/deck.pptx", true},
		{"/library/sub/deck.pptx", true},
		{"/library", true},
		{"/other/deck.pptx", false},
		{"/library-other/deck.pptx", false},
	}
	for _, tc := range cases {
		if got := isUnderRoot(root, tc.path); got != tc.want {
			t.Errorf("isUnderRoot(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestSkippedRecordCapsExamples(t *testing.T) {
	s := newSkipped()
	for i := 0; i < 30; i++ {
		s.record(skipParseFailed, "path")
	}
	if s.Counts[skipParseFailed] != 30 {
		t.Errorf("count = %d, want 30", s.Counts[skipParseFailed])
	}
	if len(s.Examples[skipParseFailed]) != 20 {
		t.Errorf("examples = %d, want capped at 20", len(s.Examples[skipParseFailed]))
	}
}
