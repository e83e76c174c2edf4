// Package pipeline sequences extraction, detection, merge, persistence and
// masking for one document per run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/doc-sentinel/internal/cache"
	"github.com/raaihank/doc-sentinel/internal/document"
	"github.com/raaihank/doc-sentinel/internal/logger"
	"github.com/raaihank/doc-sentinel/internal/mask"
	"github.com/raaihank/doc-sentinel/internal/privacy"
	"github.com/raaihank/doc-sentinel/internal/semantic"
	"github.com/raaihank/doc-sentinel/internal/websocket"
)

// Pipeline orchestrates the detection-and-masking flow. All collaborators
// are injected at construction with explicit lifecycles owned by the caller;
// hub, detectionCache and artifacts may be nil.
type Pipeline struct {
	patterns       *privacy.Detector
	contexts       ContextDetector
	store          FindingStore
	masker         Masker
	detectionCache *cache.DetectionCache
	artifacts      ArtifactUploader
	hub            *websocket.Hub
	logger         *logger.Logger

	// docLocks serializes the Persisted→Masked transition per document
	// reference so concurrent runs do not race on the same output file.
	docLocks sync.Map
}

// New creates a pipeline orchestrator
func New(
	patterns *privacy.Detector,
	contexts ContextDetector,
	store FindingStore,
	masker Masker,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		patterns: patterns,
		contexts: contexts,
		store:    store,
		masker:   masker,
		logger:   log,
	}
}

// WithCache attaches an optional detection result cache
func (p *Pipeline) WithCache(c *cache.DetectionCache) *Pipeline {
	p.detectionCache = c
	return p
}

// WithArtifacts attaches an optional object storage uploader for masked
// outputs
func (p *Pipeline) WithArtifacts(a ArtifactUploader) *Pipeline {
	p.artifacts = a
	return p
}

// WithHub attaches an optional websocket hub for run events
func (p *Pipeline) WithHub(h *websocket.Hub) *Pipeline {
	p.hub = h
	return p
}

// Run processes a single document end-to-end and returns the output path.
// Hard failures abort at the point of occurrence; an empty masking value
// set completes the run with NothingToDo set and no output file.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	runID := fmt.Sprintf("run_%d", time.Now().UnixNano())
	log := p.logger.WithRunID(runID).WithDocument(req.FilePath)
	start := time.Now()

	result := &Result{RunID: runID}

	p.publishRun(websocket.EventTypeRunStarted, runID, req.FilePath, "", "", 0)

	fail := func(state State, err error) (*Result, error) {
		result.State = StateFailed
		log.Error("Pipeline run failed",
			zap.String("at_state", string(state)),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		p.publishRun(websocket.EventTypeRunFailed, runID, req.FilePath, "", err.Error(), time.Since(start))
		return nil, err
	}

	fileType, err := document.ParseFileType(req.FileType)
	if err != nil {
		return fail(StateExtracted, err)
	}

	// Extracted
	text, err := document.Extract(req.FilePath, fileType)
	if err != nil {
		return fail(StateExtracted, err)
	}
	result.State = StateExtracted
	log.Debug("Text extracted", zap.Int("chars", len(text)))

	// Detected: pattern pass is local; the context pass talks to the
	// service and aborts the whole run on failure, before anything is
	// persisted.
	regexFindings := p.patterns.Detect(text, req.Categories)

	contextResult, err := p.detectContext(ctx, text, req.Categories, req.Additional, log)
	if err != nil {
		return fail(StateDetected, err)
	}
	result.State = StateDetected

	// Merged: regex results are the floor, model results override on
	// category collision. Model category labels outside the requested set
	// are dropped rather than trusted verbatim.
	merged := mergeFindings(regexFindings, contextResult.Personal, req.Categories)
	result.State = StateMerged

	p.publishFindings(runID, req.FilePath, merged, contextResult.Additional)

	// Persisted→Masked runs under the per-document lock
	lock := p.lockFor(req.FilePath)
	lock.Lock()
	defer lock.Unlock()

	if err := p.store.SaveMetadata(ctx, req.FilePath); err != nil {
		return fail(StateMerged, err)
	}
	if err := p.store.SaveFindings(ctx, req.FilePath, merged); err != nil {
		return fail(StateMerged, err)
	}
	if err := p.store.SaveAdditional(ctx, req.FilePath, contextResult.Additional); err != nil {
		return fail(StateMerged, err)
	}
	result.State = StatePersisted

	// The masking value set is reloaded from the store, not taken from
	// the in-memory merge: persistence is load-bearing.
	values, err := p.store.MaskingValues(ctx, req.FilePath)
	if err != nil {
		return fail(StatePersisted, err)
	}

	outputPath, err := p.masker.Mask(req.FilePath, values)
	if err != nil {
		if errors.Is(err, mask.ErrNoMaskingData) {
			result.State = StateDone
			result.NothingToDo = true
			log.Info("No PII found, nothing to mask",
				zap.Duration("duration", time.Since(start)))
			p.publishRun(websocket.EventTypeRunCompleted, runID, req.FilePath, "", "", time.Since(start))
			return result, nil
		}
		return fail(StatePersisted, err)
	}
	result.State = StateMasked
	result.OutputPath = outputPath

	if p.artifacts != nil {
		key := "masked/" + filepath.Base(outputPath)
		url, err := p.artifacts.Upload(ctx, outputPath, key)
		if err != nil {
			// Upload is best-effort; the local output already exists
			log.Warn("Artifact upload failed", zap.Error(err))
		} else {
			result.ArtifactURL = url
		}
	}

	result.State = StateDone
	log.Info("Pipeline run completed",
		zap.String("output", outputPath),
		zap.Int("masked_values", len(values)),
		zap.Duration("duration", time.Since(start)),
	)
	p.publishRun(websocket.EventTypeRunCompleted, runID, req.FilePath, outputPath, "", time.Since(start))

	return result, nil
}

// detectContext runs the semantic detector, going through the cache when
// one is attached. Cache infrastructure errors degrade to a service call.
func (p *Pipeline) detectContext(ctx context.Context, text string, categories, additional []string, log *logger.Logger) (*semantic.Result, error) {
	if p.detectionCache == nil {
		return p.contexts.Detect(ctx, text, categories, additional)
	}

	key := p.detectionCache.Key(text, categories, additional)
	cached, hit, err := p.detectionCache.Get(ctx, key)
	if err != nil {
		log.Warn("Detection cache lookup failed", zap.Error(err))
	} else if hit {
		return &semantic.Result{
			Personal:   cached.Personal,
			Additional: cached.Additional,
		}, nil
	}

	result, err := p.contexts.Detect(ctx, text, categories, additional)
	if err != nil {
		return nil, err
	}

	if storeErr := p.detectionCache.Store(ctx, key, &cache.CachedDetection{
		Personal:   result.Personal,
		Additional: result.Additional,
	}); storeErr != nil {
		log.Warn("Detection cache store failed", zap.Error(storeErr))
	}

	return result, nil
}

// mergeFindings unions the two detector outputs. On a category key present
// in both, the model result replaces the regex result entirely. Model
// categories not in the requested set are discarded.
func mergeFindings(regex, model map[string][]string, requested []string) map[string][]string {
	allowed := make(map[string]bool, len(requested))
	for _, c := range requested {
		allowed[c] = true
	}

	merged := make(map[string][]string, len(regex)+len(model))
	for category, values := range regex {
		merged[category] = values
	}
	for category, values := range model {
		if !allowed[category] {
			continue
		}
		merged[category] = values
	}

	return merged
}

// lockFor returns the mutex guarding a document reference
func (p *Pipeline) lockFor(docRef string) *sync.Mutex {
	actual, _ := p.docLocks.LoadOrStore(docRef, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func (p *Pipeline) publishRun(typ websocket.EventType, runID, docRef, outputPath, errMsg string, dur time.Duration) {
	if p.hub == nil {
		return
	}
	p.hub.BroadcastEvent(websocket.Event{
		Type:      typ,
		Timestamp: time.Now(),
		RunID:     runID,
		Data: websocket.RunEvent{
			RunID:      runID,
			Document:   docRef,
			State:      string(typ),
			OutputPath: outputPath,
			Error:      errMsg,
			DurationMS: float64(dur.Milliseconds()),
		},
	})
}

func (p *Pipeline) publishFindings(runID, docRef string, merged, additional map[string][]string) {
	if p.hub == nil {
		return
	}
	counts := make(map[string]int, len(merged))
	for category, values := range merged {
		counts[category] = len(values)
	}
	p.hub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeFindings,
		Timestamp: time.Now(),
		RunID:     runID,
		Data: websocket.FindingsEvent{
			RunID:            runID,
			Document:         docRef,
			CategoryCounts:   counts,
			AdditionalLabels: len(additional),
		},
	})
}
