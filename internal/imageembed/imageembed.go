// Package imageembed loads a local ONNX vision model and runs per-thumbnail
// inference for the IMG_VEC pipeline. The model file is introspected once
// for its input/output names, spatial dimensions, and channel order
// (shape[1]==3 means channels-first, shape[3]==3 channels-last). A missing
// model asset is routine for a library that has never had one installed, so
// it surfaces as ErrModelMissing for callers to degrade to SKIPPED rather
// than a hard failure.
package imageembed

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"
)

// ModelFileName is the single local asset this package looks for directly
// under a library root's cache directory (<library_root>/cache/).
const ModelFileName = "image_embedder.onnx"

const defaultSpatialDim = 224

// ErrModelMissing signals the model asset isn't installed for this library;
// callers must treat every queued IMG_VEC artifact as SKIPPED, not ERROR.
var ErrModelMissing = fmt.Errorf("onnx image model not found")

// Embedder wraps a loaded ONNX session along with the introspected shape
// needed to preprocess a thumbnail into its input tensor.
type Embedder struct {
	mu sync.Mutex

	session   *ort.DynamicAdvancedSession
	modelID   string
	inputName string

	channelsFirst bool
	width         int
	height        int
	dim           int
}

// ModelID returns "onnx:<filename>", the value persisted into
// page_image_embedding.model.
func (e *Embedder) ModelID() string { return e.modelID }

// Dim returns the flattened output vector length.
func (e *Embedder) Dim() int { return e.dim }

// Close releases the underlying ONNX session.
func (e *Embedder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
}

// Load locates ModelFileName under <libraryRoot>/cache,
// introspects its input/output shapes, and opens a session. Returns
// ErrModelMissing (wrapped) if the asset isn't present.
func Load(libraryRoot string) (*Embedder, error) {
	modelPath := filepath.Join(libraryRoot, "cache", ModelFileName)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelMissing, modelPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initializing onnx runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("introspecting %s: %w", modelPath, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s declares no inputs/outputs", modelPath)
	}
	in := inputs[0]
	out := outputs[0]

	channelsFirst, width, height := detectLayout(in.Dimensions)

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()

	numThreads := runtime.NumCPU()
	if numThreads > 4 {
		numThreads = 4
	}
	if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
		return nil, fmt.Errorf("set intra threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("set inter threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("creating onnx session for %s: %w", modelPath, err)
	}

	return &Embedder{
		session:       session,
		modelID:       "onnx:" + ModelFileName,
		inputName:     in.Name,
		channelsFirst: channelsFirst,
		width:         width,
		height:        height,
		dim:           outputDim(out.Dimensions),
	}, nil
}

// detectLayout reads a 4D input shape [N,C,H,W] or [N,H,W,C], classifying
// channel order by which non-batch dimension equals 3. Dynamic (<=0)
// spatial dims default to defaultSpatialDim for models that declare -1 for
// height/width.
func detectLayout(dims []int64) (channelsFirst bool, width, height int) {
	width, height = defaultSpatialDim, defaultSpatialDim
	if len(dims) != 4 {
		return false, width, height
	}
	if dims[1] == 3 {
		channelsFirst = true
		if dims[2] > 0 {
			height = int(dims[2])
		}
		if dims[3] > 0 {
			width = int(dims[3])
		}
		return channelsFirst, width, height
	}
	if dims[3] == 3 {
		channelsFirst = false
		if dims[1] > 0 {
			height = int(dims[1])
		}
		if dims[2] > 0 {
			width = int(dims[2])
		}
		return channelsFirst, width, height
	}
	return false, width, height
}

func outputDim(dims []int64) int {
	n := 1
	for _, d := range dims {
		if d > 1 {
			n *= int(d)
		}
	}
	if n <= 1 {
		return 512
	}
	return n
}

// Embed decodes the thumbnail at imgPath, resizes it to the model's
// expected spatial dimensions, normalizes pixels to [0,1], lays them out in
// the detected channel order, and runs inference, returning the flattened
// output vector.
func (e *Embedder) Embed(imgPath string) ([]float32, error) {
	f, err := os.Open(imgPath)
	if err != nil {
		return nil, fmt.Errorf("opening thumbnail %s: %w", imgPath, err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding thumbnail %s: %w", imgPath, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, e.width, e.height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	input := e.toTensorData(dst)

	e.mu.Lock()
	defer e.mu.Unlock()

	var shape ort.Shape
	if e.channelsFirst {
		shape = ort.NewShape(1, 3, int64(e.height), int64(e.width))
	} else {
		shape = ort.NewShape(1, int64(e.height), int64(e.width), 3)
	}
	tensor, err := ort.NewTensor(shape, input)
	if err != nil {
		return nil, fmt.Errorf("building input tensor: %w", err)
	}
	defer tensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{tensor}, outputs); err != nil {
		return nil, fmt.Errorf("running inference on %s: %w", imgPath, err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type for %s", imgPath)
	}
	data := outTensor.GetData()
	vec := make([]float32, len(data))
	copy(vec, data)
	return vec, nil
}

// toTensorData flattens an RGBA image into [0,1]-normalized float32 pixels
// in either CHW or HWC order.
func (e *Embedder) toTensorData(img *image.RGBA) []float32 {
	w, h := e.width, e.height
	out := make([]float32, 3*w*h)
	if e.channelsFirst {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				idx := y*w + x
				out[0*w*h+idx] = float32(r>>8) / 255
				out[1*w*h+idx] = float32(g>>8) / 255
				out[2*w*h+idx] = float32(b>>8) / 255
			}
		}
		return out
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			idx := (y*w + x) * 3
			out[idx+0] = float32(r>>8) / 255
			out[idx+1] = float32(g>>8) / 255
			out[idx+2] = float32(b>>8) / 255
		}
	}
	return out
}
