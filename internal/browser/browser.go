// Package browser drives the Chromium instance over CDP and adapts its
// pages to the scrape package's Document interface.
package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Browser owns the CDP connection.
type Browser struct {
	browser *rod.Browser
	logger  *slog.Logger
}

// Connect attaches to a running Chromium at controlURL, or launches a local
// instance when controlURL is empty.
func Connect(ctx context.Context, controlURL string, headless bool, logger *slog.Logger) (*Browser, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if controlURL == "" {
		url, err := launcher.New().Headless(headless).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chromium: %w", err)
		}
		controlURL = url
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chromium: %w", err)
	}

	logger.Info("Browser connected", "control_url", controlURL)
	return &Browser{browser: b, logger: logger}, nil
}

// Pages lists the currently open pages.
func (b *Browser) Pages() ([]*rod.Page, error) {
	pages, err := b.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

// Close tears down the CDP connection.
func (b *Browser) Close() error {
	return b.browser.Close()
}
