package pptxmeta

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/allanyiin/slidemanager/internal/catalog"
)

func writeTestPptx(t *testing.T, cx, cy string, slideCount int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deck.pptx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating test pptx: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	if cx != "" {
		w, err := zw.Create("ppt/presentation.xml")
		if err != nil {
			t.Fatalf("creating presentation.xml entry: %v", err)
		}
		xml := `<?xml version="1.0"?><p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:sldSz cx="` + cx + `" cy="` + cy + `"/></p:presentation>`
		if _, err := w.Write([]byte(xml)); err != nil {
			t.Fatalf("writing presentation.xml: %v", err)
		}
	}
	for i := 1; i <= slideCount; i++ {
		w, err := zw.Create("ppt/slides/slide" + itoa(i) + ".xml")
		if err != nil {
			t.Fatalf("creating slide entry: %v", err)
		}
		if _, err := w.Write([]byte("<p:sld/>")); err != nil {
			t.Fatalf("writing slide entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	return path
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestDetectAspect(t *testing.T) {
	cases := []struct {
		name     string
		cx, cy   string
		expected catalog.Aspect
	}{
		{"4:3 exact", "9144000", "6858000", catalog.Aspect43},
		{"16:9 exact", "9144000", "5143500", catalog.Aspect169},
		{"unusual ratio", "1000", "900", catalog.AspectUnknown},
		{"zero cy", "1000", "0", catalog.AspectUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTestPptx(t, tc.cx, tc.cy, 1)
			if got := DetectAspect(path); got != tc.expected {
				t.Errorf("DetectAspect() = %q, want %q", got, tc.expected)
			}
		})
	}
}

func TestDetectAspectMissingPresentationXML(t *testing.T) {
	path := writeTestPptx(t, "", "", 1)
	if got := DetectAspect(path); got != catalog.AspectUnknown {
		t.Errorf("DetectAspect() with no presentation.xml = %q, want unknown", got)
	}
}

func TestSlideCount(t *testing.T) {
	path := writeTestPptx(t, "9144000", "6858000", 5)
	n, err := SlideCount(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Errorf("SlideCount() = %d, want 5", n)
	}
}

func TestIsZip(t *testing.T) {
	path := writeTestPptx(t, "9144000", "6858000", 1)
	if !IsZip(path) {
		t.Errorf("IsZip() = false for a real zip file")
	}

	notZip := filepath.Join(t.TempDir(), "not-a-zip.pptx")
	if err := os.WriteFile(notZip, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("writing non-zip file: %v", err)
	}
	if IsZip(notZip) {
		t.Errorf("IsZip() = true for a non-zip file")
	}
}
