package pdfconvert

import "testing"

func TestStemName(t *testing.T) {
	cases := map[string]string{
		"/tmp/deck.pptx":          "deck",
		"/tmp/a.b.pptx":           "a.b",
		"deck.pptx":               "deck",
		"/a/b/c/no-extension.ext": "no-extension",
	}
	for in, want := range cases {
		if got := stemName(in); got != want {
			t.Errorf("stemName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFileURL(t *testing.T) {
	got := fileURL("/tmp/profile")
	if got != "file:///tmp/profile" {
		t.Errorf("fileURL(%q) = %q, want file:///tmp/profile", "/tmp/profile", got)
	}
}

func TestResolveSofficeBinaryNeverEmpty(t *testing.T) {
	if ResolveSofficeBinary() == "" {
		t.Error("ResolveSofficeBinary() returned an empty string")
	}
}
