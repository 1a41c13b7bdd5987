// Package scrape harvests structured profile and job data from a rendered
// page. It works against small Document/Node interfaces so the extraction
// logic is independent of the CDP adapter that backs them in production.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Node is one rendered element.
type Node interface {
	// Text returns the node's visible text, untrimmed. Missing or detached
	// nodes yield "".
	Text() string
	// HTML returns the node's outer HTML, or "" when unavailable.
	HTML() string
	// First returns the first descendant matching the selector.
	First(selector string) (Node, bool)
	// All returns every descendant matching the selector.
	All(selector string) []Node
}

// Document is a live DOM tree that can signal mutations.
type Document interface {
	Node

	// Mutations subscribes to subtree change notifications. The returned
	// stop function releases the subscription and must always be called;
	// the channel may coalesce bursts into a single signal.
	Mutations(ctx context.Context) (<-chan struct{}, func())
}

// ErrWaitTimeout marks a selector wait that elapsed with no match.
var ErrWaitTimeout = errors.New("selector wait timed out")

// AwaitNode resolves once a node matching selector appears in doc, or fails
// with ErrWaitTimeout after timeout. The check runs immediately before any
// subscription; the mutation subscription is released on every exit path.
// AwaitNode never retries: retry policy belongs to the caller.
func AwaitNode(ctx context.Context, doc Document, selector string, timeout time.Duration) (Node, error) {
	if n, ok := doc.First(selector); ok {
		return n, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	mutations, stop := doc.Mutations(waitCtx)
	defer stop()

	// Re-check after subscribing: the node may have appeared between the
	// immediate check and the subscription.
	if n, ok := doc.First(selector); ok {
		return n, nil
	}

	for {
		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%q after %s: %w", selector, timeout, ErrWaitTimeout)
		case _, open := <-mutations:
			if !open {
				// Producer went away; wait out the deadline.
				mutations = nil
				continue
			}
			if n, ok := doc.First(selector); ok {
				return n, nil
			}
		}
	}
}
