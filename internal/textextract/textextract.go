// Package textextract pulls the plain text runs from a single slide's XML
// part, normalizes whitespace, and fingerprints the result with a short,
// stable hex signature the embedding cache keys on.
package textextract

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const zeroWidthSpace = "​"

// ExtractPageText opens pptxPath as a zip, reads
// ppt/slides/slide<pageNo>.xml, and returns (rawText, normalizedText,
// signature). signature is empty when normalizedText is empty.
func ExtractPageText(pptxPath string, pageNo int) (raw, norm, sig string, err error) {
	zr, err := zip.OpenReader(pptxPath)
	if err != nil {
		return "", "", "", fmt.Errorf("opening %s: %w", pptxPath, err)
	}
	defer zr.Close()

	slideName := fmt.Sprintf("ppt/slides/slide%d.xml", pageNo)
	var f *zip.File
	for _, entry := range zr.File {
		if entry.Name == slideName {
			f = entry
			break
		}
	}
	if f == nil {
		return "", "", "", fmt.Errorf("slide part %s not found in %s", slideName, pptxPath)
	}

	rc, err := f.Open()
	if err != nil {
		return "", "", "", fmt.Errorf("reading slide part %s: %w", slideName, err)
	}
	defer rc.Close()

	raw, err = extractTextFromSlideXML(rc)
	if err != nil {
		return "", "", "", fmt.Errorf("parsing slide xml %s: %w", slideName, err)
	}
	norm = NormalizeText(raw)
	if norm != "" {
		sig = fastTextSig(norm)
	}
	return raw, norm, sig, nil
}

// extractTextFromSlideXML streams the slide XML and collects the text of
// every element whose local name is "t" (DrawingML's <a:t> runs), joined
// with newlines in document order. The element's namespace is not checked. Walking tokens rather than unmarshaling into
// a struct tree avoids needing to model DrawingML's arbitrarily nested
// shape/paragraph/run structure just to reach the leaf text.
func extractTextFromSlideXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var lines []string
	var inRun bool
	var buf strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inRun = true
				buf.Reset()
			}
		case xml.CharData:
			if inRun {
				buf.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "t" && inRun {
				lines = append(lines, buf.String())
				inRun = false
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}

// NormalizeText strips zero-width spaces, canonicalizes line endings,
// collapses interior whitespace runs to a single space per line, trims each
// line, and drops blank lines. Idempotent: normalizing already-normalized
// text is a no-op.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, zeroWidthSpace, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	rawLines := strings.Split(s, "\n")
	lines := make([]string, 0, len(rawLines))
	for _, line := range rawLines {
		collapsed := collapseWhitespace(line)
		trimmed := strings.TrimSpace(collapsed)
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(lines, "\n")
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\v' || r == '\f' || r == '\r' {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// fastTextSig fingerprints normalized text as the first 8 bytes of its
// sha256 digest, hex-encoded: a stable 16-character signature.
func fastTextSig(normText string) string {
	sum := sha256.Sum256([]byte(normText))
	return hex.EncodeToString(sum[:8])
}
