package thumbrender

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/allanyiin/slidemanager/internal/catalog"
)

func TestThumbSize(t *testing.T) {
	cases := []struct {
		aspect       catalog.Aspect
		wantW, wantH int
	}{
		{catalog.Aspect43, 320, 240},
		{catalog.Aspect169, 320, 180},
		{catalog.AspectUnknown, 320, 180},
	}
	for _, tc := range cases {
		w, h := ThumbSize(tc.aspect, 320, 240, 180)
		if w != tc.wantW || h != tc.wantH {
			t.Errorf("ThumbSize(%q) = (%d,%d), want (%d,%d)", tc.aspect, w, h, tc.wantW, tc.wantH)
		}
	}
}

func TestStemName(t *testing.T) {
	if got := stemName("/tmp/deck.pdf"); got != "deck" {
		t.Errorf("stemName() = %q, want deck", got)
	}
}

func TestResizeExact(t *testing.T) {
	src := filepath.Join(t.TempDir(), "in.jpg")
	f, err := os.Create(src)
	if err != nil {
		t.Fatalf("creating source image: %v", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 800; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 0, A: 255})
		}
	}
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatalf("encoding source image: %v", err)
	}
	f.Close()

	dst := filepath.Join(t.TempDir(), "out.jpg")
	if err := ResizeExact(src, dst, 320, 180); err != nil {
		t.Fatalf("ResizeExact() error: %v", err)
	}

	out, err := os.Open(dst)
	if err != nil {
		t.Fatalf("opening resized output: %v", err)
	}
	defer out.Close()
	decoded, err := jpeg.Decode(out)
	if err != nil {
		t.Fatalf("decoding resized output: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 320 || bounds.Dy() != 180 {
		t.Errorf("resized image = %dx%d, want 320x180", bounds.Dx(), bounds.Dy())
	}
}
