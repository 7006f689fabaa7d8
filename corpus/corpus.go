package corpus

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrUnsupported is returned when a backend cannot perform an operation.
var ErrUnsupported = errors.New("corpus: operation not supported by backend")

// Default result limits of the search operations.
const (
	DefaultDocumentLimit = 5
	DefaultConceptLimit  = 10
	DefaultFragmentLimit = 10

	// PreviewLength is the number of characters kept in DocumentMatch.Preview.
	PreviewLength = 200
)

// Document is a philosophical text as stored in the NLP tables.
type Document struct {
	ID    int64
	Title string
	Type  string
	Text  string
}

// ConceptMention records that a concept appears in a document.
type ConceptMention struct {
	DocumentID int64
	Title      string
	Concept    string
	Context    string
}

// Fragment is a sentence-aligned chunk of a long document.
type Fragment struct {
	DocumentID int64
	Number     int
	Text       string
	Tokens     int
	Embedding  []float32
}

// Concept is an aggregated concept ready to be indexed.
type Concept struct {
	Name      string
	Example   string
	Frequency int
	Documents int
	Embedding []float32
}

// DocumentMatch is a document returned by a similarity search.
type DocumentMatch struct {
	DocumentID int64
	Title      string
	Type       string
	Similarity float64
	Preview    string
}

// ConceptMatch is a concept returned by a similarity search.
type ConceptMatch struct {
	Concept    string
	Similarity float64
	Frequency  int
	Example    string
}

// FragmentMatch is a fragment returned by a similarity search.
type FragmentMatch struct {
	DocumentID int64
	Number     int
	Text       string
	Similarity float64
}

// ConceptContext summarises how a concept is used across the corpus.
type ConceptContext struct {
	Example   string
	Frequency int
	Documents int
}

// Comparison lists the concepts two documents share.
type Comparison struct {
	Shared []string
	Count  int
}

// Store answers the semantic queries the agent's vector tools need.
type Store interface {
	SearchDocuments(ctx context.Context, query string, limit int) ([]DocumentMatch, error)
	RelatedConcepts(ctx context.Context, concept string, limit int) ([]ConceptMatch, error)
	SearchFragments(ctx context.Context, query string, limit int) ([]FragmentMatch, error)
	ConceptContext(ctx context.Context, concept string) ([]ConceptContext, error)
	CompareDocuments(ctx context.Context, title1, title2 string) (*Comparison, error)
}

// Indexer writes embeddings produced by the ingest pipeline.
type Indexer interface {
	UpsertDocument(ctx context.Context, doc Document, titleEmbedding, textEmbedding []float32) error
	AddFragments(ctx context.Context, documentID int64, fragments []Fragment) error
	AddMentions(ctx context.Context, documentID int64, mentions []ConceptMention) error
	UpsertConcept(ctx context.Context, concept Concept) error
}

// Source provides the raw documents and concept mentions to index.
type Source interface {
	Documents(ctx context.Context) ([]Document, error)
	Mentions(ctx context.Context) ([]ConceptMention, error)
}

// Embedder turns text into vectors. langchaingo's embeddings.Embedder
// satisfies it.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Preview returns at most PreviewLength runes of text.
func Preview(text string) string {
	return Truncate(text, PreviewLength)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// Intersect returns the sorted set of concepts present in both slices.
func Intersect(a, b []string) *Comparison {
	set := make(map[string]struct{}, len(a))
	for _, c := range a {
		set[c] = struct{}{}
	}

	seen := make(map[string]struct{})
	shared := make([]string, 0)
	for _, c := range b {
		if _, ok := set[c]; !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		shared = append(shared, c)
	}
	sort.Strings(shared)

	return &Comparison{Shared: shared, Count: len(shared)}
}

// NormalizeTitle folds a title for case-insensitive lookups.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
