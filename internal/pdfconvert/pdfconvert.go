// Package pdfconvert invokes a headless office suite to turn a .pptx
// package into a .pdf, the first of two soffice invocations the thumbnail
// pipeline depends on (the second, in internal/thumbrender, rasterizes the
// pages of that PDF to JPEGs).
package pdfconvert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/allanyiin/slidemanager/internal/constants"
)

// DefaultSofficeBinary is the executable name resolved via PATH when no
// explicit binary has been configured.
const DefaultSofficeBinary = "soffice"

// WindowsCandidates are the two canonical LibreOffice install locations
// probed when soffice.exe isn't found on PATH.
var WindowsCandidates = []string{
	`C:\Program Files\LibreOffice\program\soffice.exe`,
	`C:\Program Files (x86)\LibreOffice\program\soffice.exe`,
}

// ResolveSofficeBinary finds the soffice executable: PATH first, then (on
// Windows) the two canonical install directories. Returns DefaultSofficeBinary
// unresolved if nothing is found, letting exec.Command surface the "not
// found" error at invocation time with the binary name that was tried.
func ResolveSofficeBinary() string {
	name := DefaultSofficeBinary
	if runtime.GOOS == "windows" {
		name = "soffice.exe"
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	if runtime.GOOS == "windows" {
		for _, c := range WindowsCandidates {
			if _, err := os.Stat(c); err == nil {
				return c
			}
		}
	}
	return name
}

// ErrTimeout is returned when the subprocess does not finish within
// timeoutSec; the caller maps it to catalog.ErrPDFConvertFail.
var ErrTimeout = errors.New("libreoffice conversion timed out")

// Convert runs soffice --headless --convert-to pdf against pptxPath,
// writing the result to outPDF. Each invocation gets a private user-profile
// directory so concurrent conversions never share a soffice profile and
// collide. timeoutSec bounds the subprocess; on timeout the whole process
// group is killed before ErrTimeout is returned.
func Convert(ctx context.Context, sofficeBinary, pptxPath, outPDF string, timeoutSec int) error {
	if err := os.MkdirAll(filepath.Dir(outPDF), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	profileDir, err := os.MkdirTemp("", "lo_profile_")
	if err != nil {
		return fmt.Errorf("creating libreoffice profile dir: %w", err)
	}
	defer os.RemoveAll(profileDir)

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	outDir := filepath.Dir(outPDF)
	cmd := exec.CommandContext(runCtx, sofficeBinary,
		"--headless", "--nologo", "--norestore", "--nofirststartwizard",
		"-env:UserInstallation="+fileURL(profileDir),
		"--convert-to", "pdf",
		"--outdir", outDir,
		pptxPath,
	)
	setProcessGroup(cmd)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		killProcessGroup(cmd)
		return fmt.Errorf("%w after %ds: %s", ErrTimeout, timeoutSec, pptxPath)
	}
	if runErr != nil {
		msg := stderr.String()
		if len(msg) > constants.StderrCaptureBytes {
			msg = msg[len(msg)-constants.StderrCaptureBytes:]
		}
		return fmt.Errorf("libreoffice failed: %s", msg)
	}

	stem := stemName(pptxPath)
	expected := filepath.Join(outDir, stem+".pdf")
	if _, err := os.Stat(expected); err != nil {
		return fmt.Errorf("pdf not produced: expected %s", expected)
	}
	if expected != outPDF {
		if _, err := os.Stat(outPDF); err == nil {
			if err := os.Remove(outPDF); err != nil {
				return fmt.Errorf("removing stale output %s: %w", outPDF, err)
			}
		}
		if err := os.Rename(expected, outPDF); err != nil {
			return fmt.Errorf("renaming %s to %s: %w", expected, outPDF, err)
		}
	}
	return nil
}

func stemName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

func fileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	slashed := filepath.ToSlash(abs)
	if len(slashed) > 0 && slashed[0] == '/' {
		return "file://" + slashed
	}
	return "file:///" + slashed
}
