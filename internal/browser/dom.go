package browser

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/tebita/sidekick/internal/scrape"
)

// PageDOM adapts a rod page to scrape.Document. Query methods never wait:
// waiting is the scrape package's job, driven by the Mutations signal.
type PageDOM struct {
	page *rod.Page
}

// NewPageDOM wraps a page.
func NewPageDOM(page *rod.Page) *PageDOM {
	return &PageDOM{page: page}
}

// First returns the first element matching the selector, without waiting.
func (d *PageDOM) First(selector string) (scrape.Node, bool) {
	has, el, err := d.page.Has(selector)
	if err != nil || !has {
		return nil, false
	}
	return &elementNode{el: el}, true
}

// All returns every element matching the selector.
func (d *PageDOM) All(selector string) []scrape.Node {
	els, err := d.page.Elements(selector)
	if err != nil {
		return nil
	}
	nodes := make([]scrape.Node, 0, len(els))
	for _, el := range els {
		nodes = append(nodes, &elementNode{el: el})
	}
	return nodes
}

// Text returns the document body text.
func (d *PageDOM) Text() string {
	if n, ok := d.First("body"); ok {
		return n.Text()
	}
	return ""
}

// HTML returns the full page markup.
func (d *PageDOM) HTML() string {
	html, err := d.page.HTML()
	if err != nil {
		return ""
	}
	return html
}

// Mutations subscribes to DOM child-node change events on the page. The
// channel coalesces bursts; the returned stop function detaches the event
// loop.
func (d *PageDOM) Mutations(ctx context.Context) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	evCtx, cancel := context.WithCancel(ctx)
	page := d.page.Context(evCtx)

	_ = proto.DOMEnable{}.Call(page)

	signal := func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}

	go page.EachEvent(
		func(*proto.DOMChildNodeInserted) { signal() },
		func(*proto.DOMChildNodeCountUpdated) { signal() },
		func(*proto.DOMAttributeModified) { signal() },
	)()

	return ch, cancel
}

// elementNode adapts a rod element to scrape.Node. Lookup errors collapse
// to "not found": a vanished node reads the same as a missing one.
type elementNode struct {
	el *rod.Element
}

func (n *elementNode) Text() string {
	text, err := n.el.Text()
	if err != nil {
		return ""
	}
	return text
}

func (n *elementNode) HTML() string {
	html, err := n.el.HTML()
	if err != nil {
		return ""
	}
	return html
}

func (n *elementNode) First(selector string) (scrape.Node, bool) {
	has, el, err := n.el.Has(selector)
	if err != nil || !has {
		return nil, false
	}
	return &elementNode{el: el}, true
}

func (n *elementNode) All(selector string) []scrape.Node {
	els, err := n.el.Elements(selector)
	if err != nil {
		return nil
	}
	nodes := make([]scrape.Node, 0, len(els))
	for _, el := range els {
		nodes = append(nodes, &elementNode{el: el})
	}
	return nodes
}
