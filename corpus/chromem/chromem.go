package chromem

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"

	"github.com/socrates-agent/socrates/corpus"
)

// Collection names.
const (
	DocumentsCollection = "documents"
	FragmentsCollection = "fragments"
	ConceptsCollection  = "concepts"
	CatalogCollection   = "catalog"
)

const conceptSeparator = "|"

// Store is an embedded corpus on top of chromem-go. Documents, fragments and
// concepts each live in their own collection; the catalog collection maps a
// normalised document title to the concepts mentioned in it.
type Store struct {
	db        *chromem.DB
	embed     chromem.EmbeddingFunc
	documents *chromem.Collection
	fragments *chromem.Collection
	concepts  *chromem.Collection
	catalog   *chromem.Collection
}

var (
	_ corpus.Store   = (*Store)(nil)
	_ corpus.Indexer = (*Store)(nil)
)

// Options configures the chromem store.
type Options struct {
	// Path of the persistence directory. Empty keeps everything in memory.
	Path     string
	Compress bool
}

// New opens (or creates) the store. Queries are embedded with embedder.
func New(embedder corpus.Embedder, opts Options) (*Store, error) {
	var db *chromem.DB
	if opts.Path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(opts.Path, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db %s: %w", opts.Path, err)
		}
	}
	return NewWithDB(db, embedder)
}

// NewWithDB creates the store over an existing database.
func NewWithDB(db *chromem.DB, embedder corpus.Embedder) (*Store, error) {
	s := &Store{db: db, embed: embeddingFunc(embedder)}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) open() error {
	for name, dst := range map[string]**chromem.Collection{
		DocumentsCollection: &s.documents,
		FragmentsCollection: &s.fragments,
		ConceptsCollection:  &s.concepts,
		CatalogCollection:   &s.catalog,
	} {
		c, err := s.db.GetOrCreateCollection(name, nil, s.embed)
		if err != nil {
			return fmt.Errorf("collection %s: %w", name, err)
		}
		*dst = c
	}
	return nil
}

func embeddingFunc(embedder corpus.Embedder) chromem.EmbeddingFunc {
	return chromem.EmbeddingFunc(
		func(ctx context.Context, text string) ([]float32, error) {
			if embedder == nil {
				return nil, errors.New("chromem: no embedder configured")
			}
			return embedder.EmbedQuery(ctx, text)
		},
	)
}

// Reset drops every collection and recreates them empty.
func (s *Store) Reset() error {
	for _, name := range []string{DocumentsCollection, FragmentsCollection, ConceptsCollection, CatalogCollection} {
		if err := s.db.DeleteCollection(name); err != nil {
			return err
		}
	}
	return s.open()
}

// SearchDocuments returns the documents closest to query.
func (s *Store) SearchDocuments(ctx context.Context, query string, limit int) ([]corpus.DocumentMatch, error) {
	res, err := queryCollection(ctx, s.documents, query, orDefault(limit, corpus.DefaultDocumentLimit))
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}

	out := make([]corpus.DocumentMatch, 0, len(res))
	for _, r := range res {
		id, _ := strconv.ParseInt(r.ID, 10, 64)
		out = append(out, corpus.DocumentMatch{
			DocumentID: id,
			Title:      r.Metadata["title"],
			Type:       r.Metadata["type"],
			Similarity: float64(r.Similarity),
			Preview:    corpus.Preview(r.Content),
		})
	}
	return out, nil
}

// RelatedConcepts returns the concepts closest to concept.
func (s *Store) RelatedConcepts(ctx context.Context, concept string, limit int) ([]corpus.ConceptMatch, error) {
	res, err := queryCollection(ctx, s.concepts, concept, orDefault(limit, corpus.DefaultConceptLimit))
	if err != nil {
		return nil, fmt.Errorf("search concepts: %w", err)
	}

	out := make([]corpus.ConceptMatch, 0, len(res))
	for _, r := range res {
		out = append(out, corpus.ConceptMatch{
			Concept:    r.ID,
			Similarity: float64(r.Similarity),
			Frequency:  atoi(r.Metadata["frequency"]),
			Example:    r.Content,
		})
	}
	return out, nil
}

// SearchFragments returns the fragments closest to query.
func (s *Store) SearchFragments(ctx context.Context, query string, limit int) ([]corpus.FragmentMatch, error) {
	res, err := queryCollection(ctx, s.fragments, query, orDefault(limit, corpus.DefaultFragmentLimit))
	if err != nil {
		return nil, fmt.Errorf("search fragments: %w", err)
	}

	out := make([]corpus.FragmentMatch, 0, len(res))
	for _, r := range res {
		id, _ := strconv.ParseInt(r.Metadata["document_id"], 10, 64)
		out = append(out, corpus.FragmentMatch{
			DocumentID: id,
			Number:     atoi(r.Metadata["number"]),
			Text:       r.Content,
			Similarity: float64(r.Similarity),
		})
	}
	return out, nil
}

// ConceptContext returns the stored context of a concept, compared
// case-insensitively, or an empty slice when it was never indexed.
func (s *Store) ConceptContext(ctx context.Context, concept string) ([]corpus.ConceptContext, error) {
	doc, err := s.concepts.GetByID(ctx, conceptID(concept))
	if err != nil {
		// chromem reports a missing ID as an error.
		return []corpus.ConceptContext{}, nil
	}
	return []corpus.ConceptContext{{
		Example:   doc.Content,
		Frequency: atoi(doc.Metadata["frequency"]),
		Documents: atoi(doc.Metadata["documents"]),
	}}, nil
}

// CompareDocuments returns the concepts mentioned in both titled documents.
func (s *Store) CompareDocuments(ctx context.Context, title1, title2 string) (*corpus.Comparison, error) {
	return corpus.Intersect(s.conceptsOf(ctx, title1), s.conceptsOf(ctx, title2)), nil
}

func (s *Store) conceptsOf(ctx context.Context, title string) []string {
	doc, err := s.catalog.GetByID(ctx, corpus.NormalizeTitle(title))
	if err != nil {
		return nil
	}
	return splitConcepts(doc.Metadata["concepts"])
}

// UpsertDocument stores the text embedding of doc. The title embedding is
// unused by this backend.
func (s *Store) UpsertDocument(ctx context.Context, doc corpus.Document, _, textEmbedding []float32) error {
	err := s.documents.AddDocument(ctx, chromem.Document{
		ID:        strconv.FormatInt(doc.ID, 10),
		Metadata:  map[string]string{"title": doc.Title, "type": doc.Type},
		Embedding: textEmbedding,
		Content:   doc.Text,
	})
	if err != nil {
		return fmt.Errorf("add document %d: %w", doc.ID, err)
	}
	return nil
}

// AddFragments replaces the fragments of a document.
func (s *Store) AddFragments(ctx context.Context, documentID int64, fragments []corpus.Fragment) error {
	docID := strconv.FormatInt(documentID, 10)
	if s.fragments.Count() > 0 {
		if err := s.fragments.Delete(ctx, map[string]string{"document_id": docID}, nil); err != nil {
			return fmt.Errorf("clear fragments of %d: %w", documentID, err)
		}
	}
	if len(fragments) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(fragments))
	for _, f := range fragments {
		docs = append(docs, chromem.Document{
			ID: fmt.Sprintf("%d#%d", documentID, f.Number),
			Metadata: map[string]string{
				"document_id": docID,
				"number":      strconv.Itoa(f.Number),
				"tokens":      strconv.Itoa(f.Tokens),
			},
			Embedding: f.Embedding,
			Content:   f.Text,
		})
	}
	if err := s.fragments.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add fragments of %d: %w", documentID, err)
	}
	return nil
}

// AddMentions merges the concepts of mentions into the catalog entry of
// each mentioned title.
func (s *Store) AddMentions(ctx context.Context, _ int64, mentions []corpus.ConceptMention) error {
	byTitle := make(map[string][]string)
	titles := make(map[string]string)
	for _, m := range mentions {
		key := corpus.NormalizeTitle(m.Title)
		byTitle[key] = append(byTitle[key], m.Concept)
		titles[key] = m.Title
	}

	for key, concepts := range byTitle {
		if existing, err := s.catalog.GetByID(ctx, key); err == nil {
			concepts = append(concepts, splitConcepts(existing.Metadata["concepts"])...)
		}
		slices.Sort(concepts)
		concepts = slices.Compact(concepts)

		err := s.catalog.AddDocument(ctx, chromem.Document{
			ID:       key,
			Metadata: map[string]string{"concepts": strings.Join(concepts, conceptSeparator)},
			// The catalog is only read by ID; a constant unit vector keeps
			// chromem from calling the embedder.
			Embedding: []float32{1},
			Content:   titles[key],
		})
		if err != nil {
			return fmt.Errorf("catalog %q: %w", titles[key], err)
		}
	}
	return nil
}

// UpsertConcept stores an aggregated concept.
func (s *Store) UpsertConcept(ctx context.Context, c corpus.Concept) error {
	err := s.concepts.AddDocument(ctx, chromem.Document{
		ID: conceptID(c.Name),
		Metadata: map[string]string{
			"frequency": strconv.Itoa(c.Frequency),
			"documents": strconv.Itoa(c.Documents),
		},
		Embedding: c.Embedding,
		Content:   c.Example,
	})
	if err != nil {
		return fmt.Errorf("add concept %q: %w", c.Name, err)
	}
	return nil
}

func conceptID(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// queryCollection clamps n to the collection size, which chromem requires.
func queryCollection(ctx context.Context, c *chromem.Collection, text string, n int) ([]chromem.Result, error) {
	n = min(n, c.Count())
	if n == 0 {
		return nil, nil
	}
	return c.Query(ctx, text, n, nil, nil)
}

func splitConcepts(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, conceptSeparator)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func orDefault(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
