package query

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/latticehq/lattice/pkg/ai"
	"github.com/latticehq/lattice/pkg/common"
	"github.com/latticehq/lattice/pkg/query/distill"
	"github.com/latticehq/lattice/pkg/store"
	"github.com/latticehq/lattice/pkg/store/memory"
)

type stubExtractor struct {
	names []string
	err   error
}

func (s stubExtractor) ExtractEntities(ctx context.Context, text string) ([]string, error) {
	return s.names, s.err
}

// invoiceFixture loads one tenant with a document, a section holding a chunk
// and an extracted due-date field, and two related entities.
func invoiceFixture(s *memory.MemoryStore, tenantID, prefix string) {
	doc := prefix + "-d1"
	sec := prefix + "-s1"
	s.AddDocument(tenantID, common.Document{ID: doc, TenantID: tenantID, Title: "Invoice INV-001"})
	s.AddSection(tenantID, common.Section{ID: sec, DocumentID: doc, Title: "Payment", Path: []string{"Invoice INV-001", "Payment"}})
	s.AddChunk(tenantID, common.TextChunk{
		ID:        prefix + "-c1",
		SectionID: sec,
		Text:      "Invoice INV-001 issued by Acme is payable within thirty days of receipt.",
		Embedding: []float32{1, 0},
	})
	s.AddKeyValue(tenantID, common.KeyValue{
		ID: prefix + "-kv1", SectionID: sec, Key: "Due Date", Value: "2024-06-15", Confidence: 0.95,
	})
	s.AddEntity(tenantID, common.Entity{ID: prefix + "-inv", TenantID: tenantID, Name: "Invoice INV-001"})
	s.AddEntity(tenantID, common.Entity{ID: prefix + "-acme", TenantID: tenantID, Name: "Acme"})
	s.AddEdge(tenantID, common.Edge{SourceID: prefix + "-inv", TargetID: sec, Kind: common.EdgeInSection, Weight: 1})
	s.AddEdge(tenantID, common.Edge{SourceID: prefix + "-acme", TargetID: sec, Kind: common.EdgeInSection, Weight: 1})
	s.AddEdge(tenantID, common.Edge{SourceID: prefix + "-inv", TargetID: prefix + "-acme", Kind: common.EdgeRelatedTo, Weight: 2})
}

func testOrchestrator(s store.GraphStore, names ...string) *Orchestrator {
	client := &ai.MockClient{Embedding: []float32{1, 0}}
	return NewOrchestrator(s, client, DefaultConfig(), WithEntityExtractor(stubExtractor{names: names}))
}

func TestExecuteExactLookup(t *testing.T) {
	s := memory.NewMemoryStore()
	invoiceFixture(s, "t1", "t1")
	o := testOrchestrator(s, "Invoice INV-001")

	result, err := o.Execute(context.Background(), Request{
		QueryText: "What is the due date of invoice INV-001?",
		TenantID:  "t1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != StateCompleted {
		t.Fatalf("state: got %q, want %q", result.State, StateCompleted)
	}
	if result.Bundle.Partial || result.Bundle.Empty {
		t.Fatalf("expected a full bundle, got partial=%v empty=%v", result.Bundle.Partial, result.Bundle.Empty)
	}
	if result.Bundle.RouteUsed != RouteLocal {
		t.Fatalf("route: got %q, want %q", result.Bundle.RouteUsed, RouteLocal)
	}

	var kvUnit *distill.Unit
	for i := range result.Bundle.Chunks {
		if result.Bundle.Chunks[i].Kind == distill.KindKeyValue {
			kvUnit = &result.Bundle.Chunks[i]
		}
	}
	if kvUnit == nil {
		t.Fatalf("expected the extracted field in the bundle, got %+v", result.Bundle.Chunks)
	}
	if kvUnit.Text != "Due Date: 2024-06-15" {
		t.Fatalf("field text: got %q", kvUnit.Text)
	}
	if kvUnit.Citation.ID != "t1-kv1" || kvUnit.Citation.DocumentID != "t1-d1" {
		t.Fatalf("field citation: got %+v", kvUnit.Citation)
	}

	cited := make(map[string]bool, len(result.Bundle.Citations))
	for _, c := range result.Bundle.Citations {
		cited[c.ID] = true
	}
	if !cited["t1-kv1"] || !cited["t1-c1"] {
		t.Fatalf("expected both evidence citations, got %+v", result.Bundle.Citations)
	}

	wantStages := []State{StateReceived, StateSeedsResolving, StateRetrieving, StateDistilling, StateCompleted}
	if !reflect.DeepEqual(result.Trace.Stages, wantStages) {
		t.Fatalf("stages: got %v, want %v", result.Trace.Stages, wantStages)
	}
	if len(result.Trace.SeedNodeIDsByTier[1]) == 0 {
		t.Fatalf("expected entity-tier seeds in the trace, got %+v", result.Trace.SeedNodeIDsByTier)
	}
}

func TestExecuteNoSeedsCompletesEmpty(t *testing.T) {
	o := testOrchestrator(memory.NewMemoryStore())

	result, err := o.Execute(context.Background(), Request{
		QueryText: "What is the capital of France?",
		TenantID:  "t1",
	})
	if err != nil {
		t.Fatalf("no seeds is not an error, got %v", err)
	}
	if result.State != StateCompleted {
		t.Fatalf("state: got %q, want %q", result.State, StateCompleted)
	}
	if !result.Bundle.Empty {
		t.Fatal("bundle must carry the explicit empty marker")
	}
	if len(result.Bundle.Chunks) != 0 || len(result.Bundle.Citations) != 0 {
		t.Fatalf("expected no evidence, got %+v", result.Bundle)
	}
	// Ranking and exploration must never run without seeds.
	if len(result.Trace.RankedNodeIDs) != 0 || result.Trace.PathCount != 0 {
		t.Fatalf("retrieval ran without seeds: %+v", result.Trace)
	}
	wantStages := []State{StateReceived, StateSeedsResolving}
	if !reflect.DeepEqual(result.Trace.Stages, wantStages) {
		t.Fatalf("stages: got %v, want %v", result.Trace.Stages, wantStages)
	}
}

func TestExecuteMultiHopProducesPaths(t *testing.T) {
	s := memory.NewMemoryStore()
	entities := map[string]string{
		"w": "Warranty Policy", "cl": "Claim Process", "ap": "Approval Step", "fee": "Service Fee",
	}
	for id, name := range entities {
		s.AddEntity("t1", common.Entity{ID: id, TenantID: "t1", Name: name})
	}
	s.AddEdge("t1", common.Edge{SourceID: "w", TargetID: "cl", Kind: common.EdgeRelatedTo, Weight: 3})
	s.AddEdge("t1", common.Edge{SourceID: "cl", TargetID: "ap", Kind: common.EdgeRelatedTo, Weight: 2})
	s.AddEdge("t1", common.Edge{SourceID: "ap", TargetID: "fee", Kind: common.EdgeRelatedTo, Weight: 2})

	o := testOrchestrator(s, "Warranty Policy", "Service Fee")
	result, err := o.Execute(context.Background(), Request{
		QueryText:  "What happens to the service fee if the warranty claim is approved?",
		TenantID:   "t1",
		ForceRoute: RouteMultiHop,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != StateCompleted {
		t.Fatalf("state: got %q, want %q", result.State, StateCompleted)
	}
	if len(result.Bundle.Paths) == 0 {
		t.Fatal("expected reasoning paths")
	}
	for _, p := range result.Bundle.Paths {
		if p.HopCount < 1 || len(p.Nodes) != p.HopCount+1 || len(p.Edges) != p.HopCount {
			t.Fatalf("malformed path: %+v", p)
		}
	}

	var pathUnit string
	for _, u := range result.Bundle.Chunks {
		if u.Kind == distill.KindPath {
			pathUnit = u.Text
		}
	}
	if pathUnit == "" {
		t.Fatalf("expected a rendered path unit, got %+v", result.Bundle.Chunks)
	}
	if !strings.Contains(pathUnit, "-(RELATED_TO)->") {
		t.Fatalf("path rendering: got %q", pathUnit)
	}
	for id, name := range entities {
		if strings.Contains(pathUnit, id+" ") {
			t.Fatalf("path should render entity names, not ids: %q (want %q)", pathUnit, name)
		}
	}
}

// flakyExpandStore serves the first ExpandNeighbors call and reports the
// graph unavailable afterwards, so ranking succeeds and exploration fails.
type flakyExpandStore struct {
	*memory.MemoryStore

	mu    sync.Mutex
	calls int
}

func (f *flakyExpandStore) ExpandNeighbors(ctx context.Context, tenantID string, nodeIDs []string, maxHops int, kinds []common.EdgeKind) (*store.Subgraph, error) {
	f.mu.Lock()
	f.calls++
	failing := f.calls > 1
	f.mu.Unlock()
	if failing {
		return nil, store.ErrGraphUnavailable
	}
	return f.MemoryStore.ExpandNeighbors(ctx, tenantID, nodeIDs, maxHops, kinds)
}

func TestExecutePartialEvidenceOnExplorationOutage(t *testing.T) {
	mem := memory.NewMemoryStore()
	invoiceFixture(mem, "t1", "t1")
	s := &flakyExpandStore{MemoryStore: mem}

	o := testOrchestrator(s, "Invoice INV-001")
	result, err := o.Execute(context.Background(), Request{
		QueryText:  "What happens if invoice INV-001 is not paid?",
		TenantID:   "t1",
		ForceRoute: RouteMultiHop,
	})
	if err != nil {
		t.Fatalf("degraded run must not fail, got %v", err)
	}
	if result.State != StatePartialEvidence {
		t.Fatalf("state: got %q, want %q", result.State, StatePartialEvidence)
	}
	if !result.Bundle.Partial {
		t.Fatal("bundle must be marked partial")
	}
	if len(result.Bundle.Chunks) == 0 {
		t.Fatal("evidence gathered before the outage must survive")
	}
	if len(result.Bundle.Paths) != 0 {
		t.Fatalf("exploration failed, no paths expected: %+v", result.Bundle.Paths)
	}
}

func TestExecuteFailsWhenAllTiersUnavailable(t *testing.T) {
	s := memory.NewMemoryStore()
	s.Unavailable = true
	o := testOrchestrator(s, "Acme")

	result, err := o.Execute(context.Background(), Request{
		QueryText: "What is the due date of the Acme invoice?",
		TenantID:  "t1",
	})
	if !errors.Is(err, store.ErrGraphUnavailable) {
		t.Fatalf("expected ErrGraphUnavailable, got %v", err)
	}
	if result.State != StateFailed {
		t.Fatalf("state: got %q, want %q", result.State, StateFailed)
	}
}

func TestExecuteTenantIsolation(t *testing.T) {
	s := memory.NewMemoryStore()
	invoiceFixture(s, "t1", "t1")
	invoiceFixture(s, "t2", "t2")
	o := testOrchestrator(s, "Acme")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		tenantID := fmt.Sprintf("t%d", i%2+1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := o.Execute(context.Background(), Request{
				QueryText:  "When is the Acme invoice due?",
				TenantID:   tenantID,
				ForceRoute: RouteLocal,
			})
			if err != nil {
				errs <- err
				return
			}
			if result.Bundle.TenantID != tenantID {
				errs <- fmt.Errorf("bundle tenant %q, want %q", result.Bundle.TenantID, tenantID)
				return
			}
			for _, c := range result.Bundle.Citations {
				if !strings.HasPrefix(c.ID, tenantID+"-") {
					errs <- fmt.Errorf("tenant %s bundle cites %q", tenantID, c.ID)
					return
				}
			}
			if len(result.Bundle.Citations) == 0 {
				errs <- fmt.Errorf("tenant %s got no evidence", tenantID)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestExecuteRejectsInvalidRequests(t *testing.T) {
	o := testOrchestrator(memory.NewMemoryStore())

	tests := []struct {
		name string
		req  Request
	}{
		{name: "empty query", req: Request{TenantID: "t1"}},
		{name: "whitespace query", req: Request{QueryText: "   ", TenantID: "t1"}},
		{name: "missing tenant", req: Request{QueryText: "anything"}},
		{name: "unknown route", req: Request{QueryText: "anything", TenantID: "t1", ForceRoute: "turbo"}},
		{name: "unknown profile", req: Request{QueryText: "anything", TenantID: "t1", WeightProfile: "bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := o.Execute(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if result.State != StateFailed {
				t.Fatalf("state: got %q, want %q", result.State, StateFailed)
			}
		})
	}
}

func TestExecuteForcedVectorRoute(t *testing.T) {
	s := memory.NewMemoryStore()
	invoiceFixture(s, "t1", "t1")
	o := testOrchestrator(s)

	result, err := o.Execute(context.Background(), Request{
		QueryText:  "invoice payment terms thirty days",
		TenantID:   "t1",
		ForceRoute: RouteVector,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Bundle.RouteUsed != RouteVector {
		t.Fatalf("route: got %q, want %q", result.Bundle.RouteUsed, RouteVector)
	}
	for _, u := range result.Bundle.Chunks {
		if u.Kind != distill.KindChunk {
			t.Fatalf("vector route must carry chunk evidence only, got %+v", u)
		}
	}
	if len(result.Bundle.Chunks) == 0 {
		t.Fatal("expected chunk evidence")
	}
	if len(result.Trace.RankedNodeIDs) != 0 {
		t.Fatalf("vector route must not rank the graph: %v", result.Trace.RankedNodeIDs)
	}
}

func TestExecuteWeightProfileAccepted(t *testing.T) {
	s := memory.NewMemoryStore()
	invoiceFixture(s, "t1", "t1")
	o := testOrchestrator(s, "Invoice INV-001")

	for _, profile := range []string{"", "balanced", "fact", "thematic"} {
		result, err := o.Execute(context.Background(), Request{
			QueryText:     "What is the due date of invoice INV-001?",
			TenantID:      "t1",
			WeightProfile: profile,
		})
		if err != nil {
			t.Fatalf("profile %q: unexpected error: %v", profile, err)
		}
		if result.State != StateCompleted {
			t.Fatalf("profile %q: state %q", profile, result.State)
		}
	}
}

func TestAnswerSynthesizesOverBundle(t *testing.T) {
	s := memory.NewMemoryStore()
	invoiceFixture(s, "t1", "t1")
	client := &ai.MockClient{
		Embedding: []float32{1, 0},
		Responses: []string{
			`{"entities":["Invoice INV-001"]}`,
			"The invoice is due 2024-06-15. [[t1-kv1]]",
		},
	}
	o := NewOrchestrator(s, client, DefaultConfig())

	result, err := o.Answer(context.Background(), Request{
		QueryText: "What is the due date of invoice INV-001?",
		TenantID:  "t1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != "The invoice is due 2024-06-15. [[t1-kv1]]" {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if result.Bundle == nil || result.Bundle.Empty {
		t.Fatal("expected a non-empty bundle behind the answer")
	}
}

func TestAnswerEmptyBundleUsesNoDataPrompt(t *testing.T) {
	client := &ai.MockClient{
		Embedding: []float32{1, 0},
		Responses: []string{
			`{"entities":[]}`,
			"I could not find that in the indexed documents.",
		},
	}
	o := NewOrchestrator(memory.NewMemoryStore(), client, DefaultConfig())

	result, err := o.Answer(context.Background(), Request{
		QueryText: "What is the meaning of life?",
		TenantID:  "t1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != "I could not find that in the indexed documents." {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if !result.Bundle.Empty {
		t.Fatal("bundle should be empty")
	}
}

func TestFormatEvidenceSections(t *testing.T) {
	bundle := &EvidenceBundle{
		Chunks: []distill.Unit{
			{Kind: distill.KindChunk, Citation: common.Citation{ID: "c1"}, Text: "Payment is due in thirty days."},
			{Kind: distill.KindKeyValue, Citation: common.Citation{ID: "kv1"}, Text: "Due Date: 2024-06-15"},
			{Kind: distill.KindPath, Text: "Invoice -(RELATED_TO)-> Acme"},
		},
	}
	got := FormatEvidence(bundle)
	for _, want := range []string{
		"Text Evidence:\n[[c1]] Payment is due in thirty days.",
		"Extracted Fields:\n[[kv1]] Due Date: 2024-06-15",
		"Reasoning Paths:\nInvoice -(RELATED_TO)-> Acme",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing section %q in:\n%s", want, got)
		}
	}
}
