package textextract

import (
	"strings"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"collapses internal whitespace", "hello   world", "hello world"},
		{"drops blank lines", "a\n\n\nb", "a\nb"},
		{"strips zero width space", "he​llo", "hello"},
		{"normalizes CRLF", "a\r\nb\rc", "a\nb\nc"},
		{"trims each line", "  leading\ntrailing  ", "leading\ntrailing"},
		{"empty stays empty", "", ""},
		{"all whitespace becomes empty", "   \n\t\n", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeText(tc.in); got != tc.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFastTextSigDeterministicAndDistinct(t *testing.T) {
	a := fastTextSig("hello world")
	b := fastTextSig("hello world")
	c := fastTextSig("hello there")
	if a != b {
		t.Fatalf("same input produced different signatures: %q vs %q", a, b)
	}
	if a == c {
		t.Fatalf("different input produced the same signature: %q", a)
	}
	if len(a) != 16 {
		t.Fatalf("expected a 16-char hex signature, got %d chars: %q", len(a), a)
	}
}

func TestExtractTextFromSlideXML(t *testing.T) {
	xml := `<?xml version="1.0"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
       xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld>
    <p:spTree>
      <p:sp><p:txBody><a:p><a:r><a:t>Title text</a:t></a:r></a:p></p:txBody></p:sp>
      <p:sp><p:txBody><a:p><a:r><a:t>Body line</a:t></a:r></a:p></p:txBody></p:sp>
    </p:spTree>
  </p:cSld>
</p:sld>`
	got, err := extractTextFromSlideXML(strings.NewReader(xml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Title text\nBody line"
	if got != want {
		t.Errorf("extractTextFromSlideXML() = %q, want %q", got, want)
	}
}
