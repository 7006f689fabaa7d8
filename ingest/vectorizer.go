package ingest

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/socrates-agent/socrates/corpus"
	"github.com/socrates-agent/socrates/log"
)

// Vectorizer defaults.
const (
	DefaultMaxChars            = 8000
	DefaultChunkSize           = 500
	DefaultMinConceptFrequency = 2
	DefaultBatchSize           = 10
)

// Report summarises a Run.
type Report struct {
	Documents int
	Fragments int
	Mentions  int
	Concepts  int
	Failed    int
}

// Vectorizer embeds a corpus and writes it to an index.
type Vectorizer struct {
	Embedder corpus.Embedder
	Indexer  corpus.Indexer
	Logger   log.Logger

	// MaxChars bounds the text embedded per document.
	MaxChars int
	// ChunkSize is the fragment size. Documents longer than twice this are fragmented.
	ChunkSize int
	// MinConceptFrequency is the number of mentions a concept needs to be indexed.
	MinConceptFrequency int
	// BatchSize sets how often document progress is logged.
	BatchSize int
	// StoreMentions writes the source mentions to the index. Disable it when
	// the source reads the mentions back from the index itself.
	StoreMentions bool
}

// VectorizerOption configures a Vectorizer.
type VectorizerOption func(*Vectorizer)

// WithLogger sets the logger.
func WithLogger(l log.Logger) VectorizerOption {
	return func(v *Vectorizer) {
		v.Logger = l
	}
}

// WithChunkSize sets the fragment size.
func WithChunkSize(n int) VectorizerOption {
	return func(v *Vectorizer) {
		v.ChunkSize = n
	}
}

// WithMaxChars sets the per-document embedding limit.
func WithMaxChars(n int) VectorizerOption {
	return func(v *Vectorizer) {
		v.MaxChars = n
	}
}

// WithMinConceptFrequency sets the concept threshold.
func WithMinConceptFrequency(n int) VectorizerOption {
	return func(v *Vectorizer) {
		v.MinConceptFrequency = n
	}
}

// WithStoreMentions toggles writing mentions to the index.
func WithStoreMentions(store bool) VectorizerOption {
	return func(v *Vectorizer) {
		v.StoreMentions = store
	}
}

// NewVectorizer creates a Vectorizer with the default limits.
func NewVectorizer(embedder corpus.Embedder, indexer corpus.Indexer, opts ...VectorizerOption) *Vectorizer {
	v := &Vectorizer{
		Embedder:            embedder,
		Indexer:             indexer,
		Logger:              log.GetDefaultLogger(),
		MaxChars:            DefaultMaxChars,
		ChunkSize:           DefaultChunkSize,
		MinConceptFrequency: DefaultMinConceptFrequency,
		BatchSize:           DefaultBatchSize,
		StoreMentions:       true,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run indexes documents, fragments and concepts from src. Failures of single
// items are logged and counted; only source and context errors abort.
func (v *Vectorizer) Run(ctx context.Context, src corpus.Source) (Report, error) {
	var report Report
	logger := log.OrDefault(v.Logger)

	docs, err := src.Documents(ctx)
	if err != nil {
		return report, fmt.Errorf("load documents: %w", err)
	}
	logger.Info("%d documentos encontrados", len(docs))

	if err := v.documents(ctx, docs, &report); err != nil {
		return report, err
	}
	if err := v.fragments(ctx, docs, &report); err != nil {
		return report, err
	}

	mentions, err := src.Mentions(ctx)
	if err != nil {
		return report, fmt.Errorf("load mentions: %w", err)
	}
	if v.StoreMentions {
		if err := v.mentions(ctx, mentions, &report); err != nil {
			return report, err
		}
	}
	if err := v.concepts(ctx, mentions, &report); err != nil {
		return report, err
	}

	logger.Info("vectorización completada: %d documentos, %d fragmentos, %d conceptos, %d fallos",
		report.Documents, report.Fragments, report.Concepts, report.Failed)
	return report, nil
}

func (v *Vectorizer) documents(ctx context.Context, docs []corpus.Document, report *Report) error {
	logger := log.OrDefault(v.Logger)
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}

		vecs, err := v.Embedder.EmbedDocuments(ctx, []string{doc.Title, corpus.Truncate(doc.Text, v.MaxChars)})
		if err == nil && len(vecs) != 2 {
			err = fmt.Errorf("expected 2 embeddings, got %d", len(vecs))
		}
		if err == nil {
			err = v.Indexer.UpsertDocument(ctx, doc, vecs[0], vecs[1])
		}
		if err != nil {
			logger.Error("error procesando documento %d: %v", doc.ID, err)
			report.Failed++
			continue
		}

		report.Documents++
		if v.BatchSize > 0 && (i+1)%v.BatchSize == 0 {
			logger.Info("procesados %d/%d documentos", i+1, len(docs))
		}
	}
	return nil
}

func (v *Vectorizer) fragments(ctx context.Context, docs []corpus.Document, report *Report) error {
	logger := log.OrDefault(v.Logger)
	splitter := NewSentenceSplitter(v.ChunkSize)

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if utf8.RuneCountInString(doc.Text) <= 2*v.ChunkSize {
			continue
		}

		chunks := splitter.SplitText(doc.Text)
		vecs, err := v.Embedder.EmbedDocuments(ctx, chunks)
		if err == nil && len(vecs) != len(chunks) {
			err = fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(vecs))
		}
		if err == nil {
			frags := make([]corpus.Fragment, len(chunks))
			for i, chunk := range chunks {
				frags[i] = corpus.Fragment{
					DocumentID: doc.ID,
					Number:     i,
					Text:       chunk,
					Tokens:     WordCount(chunk),
					Embedding:  vecs[i],
				}
			}
			err = v.Indexer.AddFragments(ctx, doc.ID, frags)
		}
		if err != nil {
			logger.Error("error fragmentando documento %d: %v", doc.ID, err)
			report.Failed++
			continue
		}
		report.Fragments += len(chunks)
	}
	return nil
}

func (v *Vectorizer) mentions(ctx context.Context, mentions []corpus.ConceptMention, report *Report) error {
	logger := log.OrDefault(v.Logger)

	byDoc := make(map[int64][]corpus.ConceptMention)
	var order []int64
	for _, m := range mentions {
		if _, ok := byDoc[m.DocumentID]; !ok {
			order = append(order, m.DocumentID)
		}
		byDoc[m.DocumentID] = append(byDoc[m.DocumentID], m)
	}

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := v.Indexer.AddMentions(ctx, id, byDoc[id]); err != nil {
			logger.Error("error guardando menciones del documento %d: %v", id, err)
			report.Failed++
			continue
		}
		report.Mentions += len(byDoc[id])
	}
	return nil
}

// AggregateConcepts groups mentions by concept. The example is the longest
// context; concepts below minFrequency are dropped. The result is sorted by
// name.
func AggregateConcepts(mentions []corpus.ConceptMention, minFrequency int) []corpus.Concept {
	type agg struct {
		freq    int
		docs    map[int64]bool
		example string
	}
	groups := make(map[string]*agg)
	for _, m := range mentions {
		g, ok := groups[m.Concept]
		if !ok {
			g = &agg{docs: make(map[int64]bool)}
			groups[m.Concept] = g
		}
		g.freq++
		g.docs[m.DocumentID] = true
		if utf8.RuneCountInString(m.Context) > utf8.RuneCountInString(g.example) {
			g.example = m.Context
		}
	}

	var concepts []corpus.Concept
	for name, g := range groups {
		if g.freq < minFrequency {
			continue
		}
		example := g.example
		if example == "" {
			example = name
		}
		concepts = append(concepts, corpus.Concept{
			Name:      name,
			Example:   example,
			Frequency: g.freq,
			Documents: len(g.docs),
		})
	}
	sort.Slice(concepts, func(i, j int) bool { return concepts[i].Name < concepts[j].Name })
	return concepts
}

func (v *Vectorizer) concepts(ctx context.Context, mentions []corpus.ConceptMention, report *Report) error {
	logger := log.OrDefault(v.Logger)

	for _, c := range AggregateConcepts(mentions, v.MinConceptFrequency) {
		if err := ctx.Err(); err != nil {
			return err
		}

		vec, err := v.Embedder.EmbedQuery(ctx, c.Name+": "+c.Example)
		if err == nil {
			c.Embedding = vec
			err = v.Indexer.UpsertConcept(ctx, c)
		}
		if err != nil {
			logger.Error("error procesando concepto '%s': %v", c.Name, err)
			report.Failed++
			continue
		}
		report.Concepts++
	}
	return nil
}
