package scrape

import (
	"context"
	"strings"
	"sync"
)

// fakeNode is a test element that answers to an explicit selector list.
type fakeNode struct {
	selectors []string
	text      string
	html      string
	children  []*fakeNode
}

func (n *fakeNode) matches(selector string) bool {
	for _, s := range n.selectors {
		if s == selector {
			return true
		}
	}
	return false
}

type fakeNodeView struct {
	doc  *fakeDoc
	node *fakeNode
}

func (v *fakeNodeView) Text() string { return v.node.text }

func (v *fakeNodeView) HTML() string {
	if v.node.html != "" {
		return v.node.html
	}
	return strings.TrimSpace(v.node.text)
}

func (v *fakeNodeView) First(selector string) (Node, bool) {
	v.doc.mu.Lock()
	defer v.doc.mu.Unlock()
	return findFirst(v.doc, v.node.children, selector)
}

func (v *fakeNodeView) All(selector string) []Node {
	v.doc.mu.Lock()
	defer v.doc.mu.Unlock()
	return findAll(v.doc, v.node.children, selector)
}

// fakeDoc is a mutable document that signals registered mutation
// subscribers on every change.
type fakeDoc struct {
	mu    sync.Mutex
	roots []*fakeNode
	subs  map[chan struct{}]struct{}
	stops int
}

func newFakeDoc(roots ...*fakeNode) *fakeDoc {
	return &fakeDoc{
		roots: roots,
		subs:  make(map[chan struct{}]struct{}),
	}
}

func (d *fakeDoc) Text() string { return "" }
func (d *fakeDoc) HTML() string { return "" }

func (d *fakeDoc) First(selector string) (Node, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return findFirst(d, d.roots, selector)
}

func (d *fakeDoc) All(selector string) []Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return findAll(d, d.roots, selector)
}

func (d *fakeDoc) Mutations(ctx context.Context) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	d.mu.Lock()
	d.subs[ch] = struct{}{}
	d.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, ch)
			d.stops++
			d.mu.Unlock()
		})
	}
	return ch, stop
}

// addNode appends a root node and signals every subscriber.
func (d *fakeDoc) addNode(n *fakeNode) {
	d.mu.Lock()
	d.roots = append(d.roots, n)
	for ch := range d.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	d.mu.Unlock()
}

// signal fires a mutation notification with no tree change.
func (d *fakeDoc) signal() {
	d.mu.Lock()
	for ch := range d.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	d.mu.Unlock()
}

func (d *fakeDoc) subscriberCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

func findFirst(doc *fakeDoc, nodes []*fakeNode, selector string) (Node, bool) {
	for _, n := range nodes {
		if n.matches(selector) {
			return &fakeNodeView{doc: doc, node: n}, true
		}
		if found, ok := findFirst(doc, n.children, selector); ok {
			return found, ok
		}
	}
	return nil, false
}

func findAll(doc *fakeDoc, nodes []*fakeNode, selector string) []Node {
	var out []Node
	for _, n := range nodes {
		if n.matches(selector) {
			out = append(out, &fakeNodeView{doc: doc, node: n})
		}
		out = append(out, findAll(doc, n.children, selector)...)
	}
	return out
}
