package common

// EdgeKind identifies the relationship type of a graph edge.
//
// The graph is populated by the ingestion pipeline; this core only reads it.
type EdgeKind string

const (
	// EdgeInSection links a TextChunk, KeyValue, or Entity to its Section.
	EdgeInSection EdgeKind = "IN_SECTION"
	// EdgePartOf links a Section or TextChunk to its Document.
	EdgePartOf EdgeKind = "PART_OF"
	// EdgeRelatedTo links two Entities, weighted by co-occurrence count.
	EdgeRelatedTo EdgeKind = "RELATED_TO"
	// EdgeMemberOf links an Entity to a Community.
	EdgeMemberOf EdgeKind = "MEMBER_OF"
)

// Document represents an ingested document. Documents are the root of the
// section tree and the coarsest citation target.
type Document struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Title    string `json:"title"`
}

// Section represents a node in a document's section tree. Path holds the
// ordered ancestor titles from the document root down to this section.
type Section struct {
	ID         string   `json:"id"`
	DocumentID string   `json:"document_id"`
	ParentID   string   `json:"parent_id,omitempty"`
	Title      string   `json:"title"`
	Level      int      `json:"level"`
	Path       []string `json:"path"`
}

// TextChunk represents a contiguous segment of text belonging to exactly one
// section. Chunks are the finest-grained evidence unit and carry the
// embedding used for structural seeding.
type TextChunk struct {
	ID         string    `json:"id"`
	SectionID  string    `json:"section_id"`
	Text       string    `json:"text"`
	TokenCount int       `json:"token_count"`
	Embedding  []float32 `json:"-"`
}

// Entity represents a node in the knowledge graph: an organization, person,
// clause, invoice, or any other concept extracted from the corpus. Entities
// are the unit of PageRank traversal.
type Entity struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Embedding []float32 `json:"-"`
}

// KeyValue represents a high-precision extracted field (e.g. "Due Date":
// "2024-01-15") scoped to a section. Key-values are the preferred evidence
// for exact-lookup queries.
type KeyValue struct {
	ID         string  `json:"id"`
	SectionID  string  `json:"section_id"`
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Community groups entities that co-occur thematically. Communities overlap:
// an entity may belong to several. The summary text is matched against query
// embeddings for thematic seeding.
type Community struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	MemberIDs []string  `json:"member_entity_ids"`
	Summary   string    `json:"summary_text"`
	Embedding []float32 `json:"-"`
}

// Edge represents a weighted, typed edge between two graph nodes. For
// RELATED_TO edges the weight is the co-occurrence count; for the structural
// kinds the weight is 1.
type Edge struct {
	SourceID string   `json:"source_id"`
	TargetID string   `json:"target_id"`
	Kind     EdgeKind `json:"kind"`
	Weight   float64  `json:"weight"`
}

// Citation is a unique reference to a piece of source material backing an
// evidence unit. SourceText is retained so the distiller can reject
// byte-identical duplicates; it is never serialized.
type Citation struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	SectionID  string `json:"section_id,omitempty"`
	SourceText string `json:"-"`
}
