// Package thumbrender rasterizes PDF pages into per-page JPEG thumbnails.
// Rasterization reuses the same headless office suite the PDF conversion
// step already depends on: one `--convert-to jpg` pass renders every page
// of a file's PDF to sequentially-named JPEGs (LibreOffice's convention for
// multi-page image export: `<stem>.jpg`, `<stem>2.jpg`, `<stem>3.jpg`,
// ...), then `golang.org/x/image/draw` resizes each page's raster to the
// exact target dimensions ThumbSize computes, decoupling the thumbnail's
// final size from whatever resolution soffice happened to export at.
package thumbrender

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/image/draw"

	"github.com/allanyiin/slidemanager/internal/catalog"
)

// ThumbSize returns the (width, height) target for a page's thumbnail:
// 4:3 and 16:9 each get their own height, and unknown aspect falls back to
// the 16:9 height.
func ThumbSize(aspect catalog.Aspect, width, h43, h169 int) (int, int) {
	switch aspect {
	case catalog.Aspect43:
		return width, h43
	case catalog.Aspect169:
		return width, h169
	default:
		return width, h169
	}
}

// RenderPagesToJPEG runs soffice --convert-to jpg against the whole PDF
// once, then returns the rendered page files indexed 0-based in page order.
// Rendering every page in one subprocess call amortizes LibreOffice's
// multi-second startup cost across a file's entire deck instead of paying
// it per page.
func RenderPagesToJPEG(ctx context.Context, sofficeBinary, pdfPath, outDir string, pageCount, timeoutSec int) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating render output dir: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, sofficeBinary,
		"--headless", "--nologo", "--norestore", "--nofirststartwizard",
		"--convert-to", "jpg",
		"--outdir", outDir,
		pdfPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rendering %s to jpg: %w: %s", pdfPath, err, stderr.String())
	}

	stem := stemName(pdfPath)
	paths := make([]string, pageCount)
	for i := 0; i < pageCount; i++ {
		name := stem + ".jpg"
		if i > 0 {
			name = stem + strconv.Itoa(i+1) + ".jpg"
		}
		p := filepath.Join(outDir, name)
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("expected rendered page %d at %s: %w", i+1, p, err)
		}
		paths[i] = p
	}
	return paths, nil
}

// ResizeExact decodes the image at srcPath and writes a JPEG at dstPath
// resized to exactly (width, height) using a high-quality (CatmullRom)
// scaling filter, regardless of the renderer's native export size.
func ResizeExact(srcPath, dstPath string, width, height int) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening rendered page %s: %w", srcPath, err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding rendered page %s: %w", srcPath, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("creating thumbnail output dir: %w", err)
	}
	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("creating thumbnail file %s: %w", dstPath, err)
	}
	defer out.Close()

	return jpeg.Encode(out, dst, &jpeg.Options{Quality: 85})
}

func stemName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
