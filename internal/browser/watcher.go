package browser

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/tebita/sidekick/internal/domain"
	"github.com/tebita/sidekick/internal/scrape"
)

// profileURLPattern matches the freelancer profile pages the extraction
// subsystem targets.
var profileURLPattern = regexp.MustCompile(`^https://www\.upwork\.com/freelancers/`)

// letterTextareaSelector is the proposal textarea the generated letter is
// inserted into.
const letterTextareaSelector = `.air3-textarea.inner-textarea`

// Watcher observes page navigations and triggers an extraction pass
// whenever a matching profile page renders. It is also the scrape entry
// point for explicit requests from surfaces.
type Watcher struct {
	browser        *Browser
	orch           *scrape.Orchestrator
	sectionTimeout time.Duration
	logger         *slog.Logger
}

// NewWatcher creates a watcher around an orchestrator.
func NewWatcher(b *Browser, orch *scrape.Orchestrator, sectionTimeout time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		browser:        b,
		orch:           orch,
		sectionTimeout: sectionTimeout,
		logger:         logger,
	}
}

// Watch runs until ctx is done, following every open page plus pages opened
// later, and kicking off a pass on each matching navigation.
func (w *Watcher) Watch(ctx context.Context) {
	pages, err := w.browser.Pages()
	if err != nil {
		w.logger.Error("Failed to list pages", "error", err)
	} else {
		for _, page := range pages {
			go w.watchPage(ctx, page)
		}
	}

	browser := w.browser.browser.Context(ctx)
	browser.EachEvent(func(ev *proto.TargetTargetCreated) {
		if ev.TargetInfo.Type != proto.TargetTargetInfoTypePage {
			return
		}
		page, err := w.browser.browser.PageFromTarget(ev.TargetInfo.TargetID)
		if err != nil {
			w.logger.Warn("Failed to attach to new page", "error", err)
			return
		}
		go w.watchPage(ctx, page)
	})()
}

func (w *Watcher) watchPage(ctx context.Context, page *rod.Page) {
	if info, err := page.Info(); err == nil && profileURLPattern.MatchString(info.URL) {
		w.runPass(ctx, page, info.URL)
	}

	page.Context(ctx).EachEvent(func(ev *proto.PageFrameNavigated) {
		if ev.Frame.ParentID != "" {
			return
		}
		if profileURLPattern.MatchString(ev.Frame.URL) {
			go w.runPass(ctx, page, ev.Frame.URL)
		}
	})()
}

func (w *Watcher) runPass(ctx context.Context, page *rod.Page, url string) {
	w.logger.Info("Profile page detected, starting extraction pass", "url", url)
	if _, err := w.orch.Run(ctx, NewPageDOM(page)); err != nil {
		// An aborted pass is logged, never surfaced as a hard failure.
		w.logger.Warn("Extraction pass aborted", "url", url, "error", err)
	}
}

// ScrapeProfile runs one on-demand extraction pass against the first open
// profile page.
func (w *Watcher) ScrapeProfile(ctx context.Context) (*domain.Profile, error) {
	page, url, err := w.findPage(profileURLPattern)
	if err != nil {
		return nil, err
	}
	w.logger.Info("On-demand extraction pass", "url", url)
	return w.orch.Run(ctx, NewPageDOM(page))
}

// JobDetails captures the job-posting block from the active page.
func (w *Watcher) JobDetails(ctx context.Context) (*domain.JobDetails, error) {
	pages, err := w.browser.Pages()
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no open pages")
	}
	page := pages[0]

	html, err := scrape.ExtractJobDetails(ctx, NewPageDOM(page), w.sectionTimeout)
	if err != nil {
		return nil, err
	}

	url := ""
	if info, infoErr := page.Info(); infoErr == nil {
		url = info.URL
	}
	return &domain.JobDetails{
		HTML:      html,
		URL:       url,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// InsertLetter types the generated letter into the proposal textarea on the
// active page.
func (w *Watcher) InsertLetter(ctx context.Context, text string) error {
	pages, err := w.browser.Pages()
	if err != nil {
		return err
	}
	for _, page := range pages {
		has, el, err := page.Context(ctx).Has(letterTextareaSelector)
		if err != nil || !has {
			continue
		}
		if err := el.Input(text); err != nil {
			return fmt.Errorf("insert letter: %w", err)
		}
		return nil
	}
	return fmt.Errorf("proposal textarea not found")
}

func (w *Watcher) findPage(pattern *regexp.Regexp) (*rod.Page, string, error) {
	pages, err := w.browser.Pages()
	if err != nil {
		return nil, "", err
	}
	for _, page := range pages {
		info, err := page.Info()
		if err != nil {
			continue
		}
		if pattern.MatchString(info.URL) {
			return page, info.URL, nil
		}
	}
	return nil, "", fmt.Errorf("no open profile page")
}
