// Package pptxmeta reads just enough OOXML structure from a .pptx package
// to classify its slide aspect ratio and count its slides, without handing
// the whole file to an office suite.
package pptxmeta

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/allanyiin/slidemanager/internal/catalog"
	"github.com/allanyiin/slidemanager/internal/constants"
)

// presentationXML captures the one element of ppt/presentation.xml this
// package cares about: sldSz, the package-wide slide size, in EMUs.
type presentationXML struct {
	XMLName struct{} `xml:"presentation"`
	SldSz   struct {
		CX string `xml:"cx,attr"`
		CY string `xml:"cy,attr"`
	} `xml:"sldSz"`
}

// DetectAspect opens path as a zip and classifies ppt/presentation.xml's
// sldSz cx/cy ratio into 4:3, 16:9, or unknown, tolerating a ratio within
// Aspect43Tolerance / Aspect169Tolerance of the canonical ratios. Any
// structural problem (missing entry, malformed XML, zero dimensions)
// degrades to "unknown" rather than failing the scan: a file either has a
// readable aspect or it doesn't, and "unknown" is itself a valid
// classification, not an error.
func DetectAspect(path string) catalog.Aspect {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return catalog.AspectUnknown
	}
	defer zr.Close()

	f, err := findEntry(zr, "ppt/presentation.xml")
	if err != nil {
		return catalog.AspectUnknown
	}
	rc, err := f.Open()
	if err != nil {
		return catalog.AspectUnknown
	}
	defer rc.Close()

	var pres presentationXML
	if err := xml.NewDecoder(rc).Decode(&pres); err != nil {
		return catalog.AspectUnknown
	}

	cx, errCX := strconv.ParseFloat(pres.SldSz.CX, 64)
	cy, errCY := strconv.ParseFloat(pres.SldSz.CY, 64)
	if errCX != nil || errCY != nil || cx <= 0 || cy <= 0 {
		return catalog.AspectUnknown
	}

	ratio := cx / cy
	if abs(ratio-constants.Aspect43Ratio) < constants.Aspect43Tolerance {
		return catalog.Aspect43
	}
	if abs(ratio-constants.Aspect169Ratio) < constants.Aspect169Tolerance {
		return catalog.Aspect169
	}
	return catalog.AspectUnknown
}

// SlideCount counts the ppt/slides/slideN.xml entries in the package, a
// cheaper scan than parsing ppt/presentation.xml's sldIdLst; the two always
// agree for a well-formed package.
func SlideCount(path string) (int, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s as zip: %w", path, err)
	}
	defer zr.Close()

	n := 0
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			n++
		}
	}
	return n, nil
}

// IsZip reports whether path has a valid zip central directory, the
// pre-check run before trusting a file's extension to match its content.
func IsZip(path string) bool {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	zr.Close()
	return true
}

func findEntry(zr *zip.ReadCloser, name string) (*zip.File, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("entry %s not found", name)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
