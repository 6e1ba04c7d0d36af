package classifier

// hugot.go - local ML-based threat classification using Hugot/ONNX.
//
// Runs a prompt-injection text-classification model fully local via ONNX
// Runtime, with a pure Go backend fallback when the runtime library is not
// installed. Initialization failure degrades to an untrained classifier
// rather than an error: the pipeline then runs pattern-only.

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/caremesh-ai/rampart/pkg/threat"
)

// HugotConfig configures the local ONNX classifier.
type HugotConfig struct {
	// ModelPath is the local path to the ONNX model directory.
	ModelPath string

	// OnnxLibraryPath is the directory containing libonnxruntime.
	// Empty selects the pure Go backend.
	OnnxLibraryPath string

	// Timeout bounds a single classification call. Zero means 300ms.
	Timeout time.Duration
}

// modelSearchPaths are checked in order when no explicit path is given.
var modelSearchPaths = []string{
	"./models/modernbert-base",
	"./models/deberta-base",
	"./models/deberta-small",
}

// AutoDetectConfig locates a model on disk and returns a config for it, or
// nil when no model is present. RAMPART_MODEL_PATH overrides the search.
func AutoDetectConfig() *HugotConfig {
	if envPath := os.Getenv("RAMPART_MODEL_PATH"); envPath != "" {
		if _, err := os.Stat(filepath.Join(envPath, "model.onnx")); err == nil {
			return &HugotConfig{ModelPath: envPath, OnnxLibraryPath: defaultOnnxPath()}
		}
	}
	for _, p := range modelSearchPaths {
		if _, err := os.Stat(filepath.Join(p, "model.onnx")); err == nil {
			return &HugotConfig{ModelPath: p, OnnxLibraryPath: defaultOnnxPath()}
		}
	}
	return nil
}

func defaultOnnxPath() string {
	paths := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
		"/usr/local/lib/libonnxruntime.dylib",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Dir(p)
		}
	}
	return ""
}

// Hugot is a Classifier backed by a local ONNX text-classification model.
type Hugot struct {
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline
	mu       sync.RWMutex
	config   HugotConfig
	trained  bool
}

// NewHugot creates a classifier from the given configuration. Construction
// never fails: if the model or runtime cannot be initialized the returned
// instance reports IsTrained() == false and Classify returns
// threat.ErrClassifierUnavailable.
func NewHugot(cfg HugotConfig) *Hugot {
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Millisecond
	}
	h := &Hugot{config: cfg}
	if err := h.initialize(); err != nil {
		log.Printf("[classifier] hugot initialization failed, running untrained: %v", err)
	}
	return h
}

// NewAutoDetectedHugot creates a classifier from an auto-detected model, or
// an untrained instance when no model is found.
func NewAutoDetectedHugot() *Hugot {
	cfg := AutoDetectConfig()
	if cfg == nil {
		log.Printf("[classifier] no ONNX model found; classifier runs untrained")
		return &Hugot{config: HugotConfig{Timeout: 300 * time.Millisecond}}
	}
	return NewHugot(*cfg)
}

func (h *Hugot) initialize() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.config.ModelPath == "" {
		return fmt.Errorf("no model path configured")
	}

	session, err := newHugotSession(h.config.OnnxLibraryPath)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	h.session = session

	pipeline, err := hugot.NewPipeline(session, hugot.TextClassificationConfig{
		ModelPath: h.config.ModelPath,
		Name:      "threat-classifier",
	})
	if err != nil {
		_ = h.session.Destroy()
		return fmt.Errorf("create pipeline: %w", err)
	}

	h.pipeline = pipeline
	h.trained = true
	log.Printf("[classifier] hugot ready (model: %s)", h.config.ModelPath)
	return nil
}

// newHugotSession tries the ONNX Runtime backend first, then the pure Go
// one. Shared by the classification and embedding pipelines.
func newHugotSession(onnxLibraryPath string) (*hugot.Session, error) {
	if onnxLibraryPath != "" {
		session, err := hugot.NewORTSession(
			options.WithOnnxLibraryPath(onnxLibraryPath),
		)
		if err == nil {
			return session, nil
		}
		log.Printf("[classifier] ONNX Runtime unavailable, falling back to Go backend: %v", err)
	}
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("go session: %w", err)
	}
	return session, nil
}

// IsTrained reports whether a model is loaded and ready for inference.
func (h *Hugot) IsTrained() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.trained
}

// labelCategory maps model labels to threat categories. Different models
// use different conventions: Sentinel emits "jailbreak", the DeBERTa and
// ModernBERT injection models emit "INJECTION"/"LABEL_1".
func labelCategory(label string) (threat.Category, bool) {
	switch label {
	case "jailbreak":
		return threat.CategoryJailbreak, true
	case "INJECTION", "LABEL_1", "malicious":
		return threat.CategoryPromptOverride, true
	default:
		return "", false
	}
}

// Classify runs one bounded inference call. Timeouts and inference errors
// both surface as threat.ErrClassifierUnavailable so the orchestrator can
// fall back to pattern-only detection for the request.
func (h *Hugot) Classify(ctx context.Context, text string) (Result, error) {
	h.mu.RLock()
	pipeline := h.pipeline
	trained := h.trained
	timeout := h.config.Timeout
	h.mu.RUnlock()

	if !trained || pipeline == nil {
		return Result{}, threat.ErrClassifierUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type inference struct {
		res Result
		err error
	}
	done := make(chan inference, 1)
	go func() {
		out, err := pipeline.RunPipeline([]string{text})
		if err != nil {
			done <- inference{err: err}
			return
		}
		if len(out.ClassificationOutputs) == 0 || len(out.ClassificationOutputs[0]) == 0 {
			done <- inference{err: fmt.Errorf("empty classification output")}
			return
		}
		top := out.ClassificationOutputs[0][0]
		cat, isThreat := labelCategory(top.Label)
		done <- inference{res: Result{
			IsThreat:   isThreat,
			Confidence: float64(top.Score),
			Category:   cat,
			Mode:       "hugot-onnx",
		}}
	}()

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %v", threat.ErrClassifierUnavailable, ctx.Err())
	case inf := <-done:
		if inf.err != nil {
			return Result{}, fmt.Errorf("%w: %v", threat.ErrClassifierUnavailable, inf.err)
		}
		return inf.res, nil
	}
}

// Close releases the ONNX session.
func (h *Hugot) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.trained = false
	if h.session != nil {
		if err := h.session.Destroy(); err != nil {
			return fmt.Errorf("destroy session: %w", err)
		}
		h.session = nil
	}
	return nil
}
