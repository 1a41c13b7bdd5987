package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tebita/sidekick/internal/domain"
)

// Phase is the orchestrator's position in one extraction pass.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseWaitingAnchor Phase = "waiting-anchor"
	PhaseExtracting    Phase = "extracting"
	PhaseAssembled     Phase = "assembled"
	PhaseEmitted       Phase = "emitted"
	PhaseAborted       Phase = "aborted"
)

// EmitFunc receives the assembled record as a fire-and-forget event. The
// orchestrator does not wait for acknowledgement.
type EmitFunc func(domain.Profile)

// Orchestrator sequences one extraction pass over a document: a long wait
// for the primary anchor, then independently-timed passes over each scalar
// field and section that degrade to nil on timeout. Partial data is
// preferred over no data; only the anchor's absence aborts a pass.
type Orchestrator struct {
	anchorTimeout  time.Duration
	sectionTimeout time.Duration
	emit           EmitFunc
	logger         *slog.Logger

	mu    sync.Mutex
	phase Phase
}

// NewOrchestrator creates an orchestrator with the given timeout policy.
// emit may be nil when callers only want the returned record.
func NewOrchestrator(anchorTimeout, sectionTimeout time.Duration, emit EmitFunc, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		anchorTimeout:  anchorTimeout,
		sectionTimeout: sectionTimeout,
		emit:           emit,
		logger:         logger,
		phase:          PhaseIdle,
	}
}

// Phase reports the current pass phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

// Run performs one extraction pass. On a primary-anchor timeout it aborts
// with an error and no record; section timeouts only null the affected
// section. The pass never panics the host process over missing data.
func (o *Orchestrator) Run(ctx context.Context, doc Document) (*domain.Profile, error) {
	o.setPhase(PhaseWaitingAnchor)

	if _, err := AwaitNode(ctx, doc, AnchorSelector, o.anchorTimeout); err != nil {
		o.setPhase(PhaseAborted)
		if errors.Is(err, ErrWaitTimeout) {
			o.logger.Warn("Primary anchor never appeared, aborting pass", "selector", AnchorSelector, "timeout", o.anchorTimeout)
			return nil, fmt.Errorf("anchor: %w", err)
		}
		return nil, err
	}

	o.setPhase(PhaseExtracting)

	var record domain.Profile

	// Sections and scalar fields render at independent, unpredictable
	// times; each gets its own deadline so a slow, non-essential one
	// cannot starve or abort the rest.
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range scalarFields {
		g.Go(func() error {
			if o.awaitSection(gctx, doc, f.name, f.selectors[0]) {
				assignScalar(&record, f.name, firstText(doc, f.selectors))
			}
			return nil
		})
	}
	g.Go(func() error {
		if o.awaitSection(gctx, doc, "skills", skillsRootSelector) {
			record.Skills = extractSkills(doc)
		}
		return nil
	})
	g.Go(func() error {
		if o.awaitSection(gctx, doc, "certifications", certificationsSelector) {
			record.Certifications = extractCertifications(doc)
		}
		return nil
	})
	g.Go(func() error {
		if o.awaitSection(gctx, doc, "workHistory", workHistorySelector) {
			record.WorkHistory = extractWorkHistory(doc)
		}
		return nil
	})
	g.Go(func() error {
		if o.awaitSection(gctx, doc, "experience", experienceSelector) {
			record.Experience = extractExperience(doc)
		}
		return nil
	})
	_ = g.Wait() // section goroutines only ever degrade, never fail

	o.setPhase(PhaseAssembled)

	o.setPhase(PhaseEmitted)
	if o.emit != nil {
		o.emit(record)
	}
	defer o.setPhase(PhaseIdle)

	return &record, nil
}

// awaitSection waits for a scalar field or section root with the short
// deadline. A timeout degrades that value to nil and the pass continues.
func (o *Orchestrator) awaitSection(ctx context.Context, doc Document, name, selector string) bool {
	if _, err := AwaitNode(ctx, doc, selector, o.sectionTimeout); err != nil {
		o.logger.Debug("Section unavailable, degrading to null", "section", name, "error", err)
		return false
	}
	return true
}

// ExtractJobDetails captures the job-posting block for letter generation.
// The block gets the section treatment: its own wait, first matching
// selector wins.
func ExtractJobDetails(ctx context.Context, doc Document, timeout time.Duration) (string, error) {
	var lastErr error
	for _, sel := range JobDetailsSelectors {
		n, err := AwaitNode(ctx, doc, sel, timeout)
		if err != nil {
			lastErr = err
			continue
		}
		if html := n.HTML(); html != "" {
			return html, nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("job details block empty: %w", ErrWaitTimeout)
	}
	return "", lastErr
}
