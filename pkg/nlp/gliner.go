package nlp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/soundprediction/go-gline-rs/pkg/gline"

	"github.com/soundprediction/docgraph/pkg/types"
)

// DefaultGlinerLabels are the entity labels requested when none are configured.
var DefaultGlinerLabels = []string{"person", "organization", "product", "technology", "location", "standard"}

// DefaultGlinerThreshold drops spans the model is less sure about.
const DefaultGlinerThreshold = 0.5

// GlinerExtractor implements EntityExtractor with a GLiNER span model.
// Value entities are always added alongside the model's spans.
type GlinerExtractor struct {
	mu        sync.Mutex
	model     *gline.Model
	labels    []string
	threshold float32
	logger    *slog.Logger
}

// NewGlinerExtractor loads modelID, either a local directory holding
// model.onnx and tokenizer.json or a Hugging Face model id.
func NewGlinerExtractor(modelID string, labels []string, logger *slog.Logger) (*GlinerExtractor, error) {
	if err := gline.Init(); err != nil {
		return nil, fmt.Errorf("failed to init gline: %w", err)
	}

	var (
		model *gline.Model
		err   error
	)
	if info, statErr := os.Stat(modelID); statErr == nil && info.IsDir() {
		model, err = gline.NewSpanModel(filepath.Join(modelID, "model.onnx"), filepath.Join(modelID, "tokenizer.json"))
	} else {
		model, err = gline.NewSpanModelFromHF(modelID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load gliner model %s: %w", modelID, err)
	}

	if len(labels) == 0 {
		labels = DefaultGlinerLabels
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GlinerExtractor{model: model, labels: labels, threshold: DefaultGlinerThreshold, logger: logger}, nil
}

// ExtractEntities implements EntityExtractor.
func (g *GlinerExtractor) ExtractEntities(ctx context.Context, text string) ([]types.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entities := ExtractValueEntities(text)
	if strings.TrimSpace(text) == "" {
		return entities, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.model == nil {
		return nil, ErrModelNotLoaded
	}

	results, err := g.model.Predict([]string{text}, g.labels)
	if err != nil {
		return nil, fmt.Errorf("gliner prediction failed: %w", err)
	}
	if len(results) == 0 {
		return entities, nil
	}

	for _, span := range results[0] {
		if span.Probability < g.threshold {
			continue
		}
		entities = append(entities, types.Entity{Text: span.Text, Label: strings.ToUpper(span.Label)})
	}
	g.logger.Debug("GLiNER extracted entities", "count", len(entities))
	return entities, nil
}

// Close releases the model.
func (g *GlinerExtractor) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.model != nil {
		g.model.Close()
		g.model = nil
	}
	return nil
}
