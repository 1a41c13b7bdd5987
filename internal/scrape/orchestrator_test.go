package scrape

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tebita/sidekick/internal/domain"
)

// fullProfileDoc builds a document with every section present.
func fullProfileDoc() *fakeDoc {
	return newFakeDoc(
		&fakeNode{selectors: []string{AnchorSelector, `h2[itemprop="name"]`}, text: "Ada Lovelace"},
		&fakeNode{selectors: []string{`h2.mb-0.h4`}, text: "Backend Developer"},
		&fakeNode{selectors: []string{skillsRootSelector}},
		&fakeNode{selectors: []string{skillsItemSelector}, text: "Go"},
		&fakeNode{selectors: []string{skillsItemSelector}, text: "SQL"},
		&fakeNode{
			selectors: []string{certificationsSelector},
			children:  []*fakeNode{{selectors: []string{"h4"}, text: "CKA"}},
		},
		&fakeNode{
			selectors: []string{workHistorySelector},
			children: []*fakeNode{
				{selectors: []string{"h4"}, text: "API project"},
				{selectors: []string{".air3-rating-value-text"}, text: "5.0"},
			},
		},
		&fakeNode{
			selectors: []string{experienceSelector},
			children: []*fakeNode{
				{selectors: []string{`h4.my-0`}, text: "Engineer | Hooli"},
				{selectors: []string{`.air3-line-clamp-wrapper`}, text: "Built things."},
			},
		},
	)
}

type emitRecorder struct {
	mu      sync.Mutex
	records []domain.Profile
}

func (e *emitRecorder) emit(p domain.Profile) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, p)
}

func (e *emitRecorder) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}

func TestOrchestrator_AnchorTimeoutAborts(t *testing.T) {
	doc := newFakeDoc() // anchor never appears
	rec := &emitRecorder{}
	o := NewOrchestrator(50*time.Millisecond, 20*time.Millisecond, rec.emit, nil)

	record, err := o.Run(context.Background(), doc)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("Expected ErrWaitTimeout, got %v", err)
	}
	if record != nil {
		t.Errorf("Aborted pass must produce no record, got %+v", record)
	}
	if got := o.Phase(); got != PhaseAborted {
		t.Errorf("Expected phase %q, got %q", PhaseAborted, got)
	}
	if rec.count() != 0 {
		t.Errorf("Aborted pass must not emit, got %d emissions", rec.count())
	}
}

func TestOrchestrator_FullPass(t *testing.T) {
	doc := fullProfileDoc()
	rec := &emitRecorder{}
	o := NewOrchestrator(200*time.Millisecond, 50*time.Millisecond, rec.emit, nil)

	record, err := o.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if record.Name == nil || *record.Name != "Ada Lovelace" {
		t.Errorf("Expected name, got %v", record.Name)
	}
	if len(record.Skills) != 2 {
		t.Errorf("Expected 2 skills, got %v", record.Skills)
	}
	if len(record.Certifications) != 1 || record.Certifications[0] != "CKA" {
		t.Errorf("Expected certifications, got %v", record.Certifications)
	}
	if len(record.WorkHistory) != 1 {
		t.Errorf("Expected work history, got %v", record.WorkHistory)
	}
	if len(record.Experience) != 1 {
		t.Errorf("Expected experience, got %v", record.Experience)
	}
	if rec.count() != 1 {
		t.Fatalf("Expected exactly one emission, got %d", rec.count())
	}
	if got := o.Phase(); got != PhaseIdle {
		t.Errorf("Expected return to %q, got %q", PhaseIdle, got)
	}
}

func TestOrchestrator_SectionTimeoutDegradesOnlyThatSection(t *testing.T) {
	doc := fullProfileDoc()
	// Remove the skills section entirely; its timeout must not touch the rest.
	doc.mu.Lock()
	var kept []*fakeNode
	for _, n := range doc.roots {
		if n.matches(skillsRootSelector) || n.matches(skillsItemSelector) {
			continue
		}
		kept = append(kept, n)
	}
	doc.roots = kept
	doc.mu.Unlock()

	rec := &emitRecorder{}
	o := NewOrchestrator(200*time.Millisecond, 50*time.Millisecond, rec.emit, nil)

	record, err := o.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if record.Skills != nil {
		t.Errorf("Timed-out section must be null, got %v", record.Skills)
	}
	if record.Name == nil || len(record.Certifications) != 1 || len(record.WorkHistory) != 1 {
		t.Error("Other sections must be unaffected by the skills timeout")
	}
	if rec.count() != 1 {
		t.Errorf("Pass must still reach Emitted, got %d emissions", rec.count())
	}
}

func TestOrchestrator_ScalarAppearsWithinSectionDeadline(t *testing.T) {
	// Only the anchor is rendered when the pass starts; the role heading
	// lands shortly after, well inside the per-section deadline.
	doc := newFakeDoc(
		&fakeNode{selectors: []string{AnchorSelector}, text: "Ada Lovelace"},
	)
	go func() {
		time.Sleep(30 * time.Millisecond)
		doc.addNode(&fakeNode{selectors: []string{`h2.mb-0.h4`}, text: "Backend Developer"})
	}()

	rec := &emitRecorder{}
	o := NewOrchestrator(500*time.Millisecond, 200*time.Millisecond, rec.emit, nil)

	record, err := o.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if record.Role == nil || *record.Role != "Backend Developer" {
		t.Errorf("A scalar rendering inside its deadline must be captured, got %v", record.Role)
	}
	if record.Location != nil {
		t.Errorf("A scalar that never renders must stay null, got %v", record.Location)
	}
}

func TestOrchestrator_AnchorAppearsLate(t *testing.T) {
	doc := newFakeDoc(
		&fakeNode{selectors: []string{skillsRootSelector}},
		&fakeNode{selectors: []string{skillsItemSelector}, text: "Go"},
	)
	go func() {
		time.Sleep(30 * time.Millisecond)
		doc.addNode(&fakeNode{selectors: []string{AnchorSelector}, text: "Ada Lovelace"})
	}()

	rec := &emitRecorder{}
	o := NewOrchestrator(500*time.Millisecond, 50*time.Millisecond, rec.emit, nil)

	record, err := o.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if record.Name == nil {
		t.Error("Expected name once anchor appeared")
	}
	if len(record.Skills) != 1 {
		t.Errorf("Expected skills, got %v", record.Skills)
	}
}

func TestExtractJobDetails(t *testing.T) {
	doc := newFakeDoc(&fakeNode{
		selectors: []string{`section[data-test="job-details"]`},
		html:      `<section>Build a scraper</section>`,
	})

	html, err := ExtractJobDetails(context.Background(), doc, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("ExtractJobDetails returned error: %v", err)
	}
	if html != `<section>Build a scraper</section>` {
		t.Errorf("Unexpected html: %q", html)
	}

	empty := newFakeDoc()
	if _, err := ExtractJobDetails(context.Background(), empty, 20*time.Millisecond); !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("Expected ErrWaitTimeout on missing block, got %v", err)
	}
}
