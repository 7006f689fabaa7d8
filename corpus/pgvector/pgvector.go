package pgvector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/socrates-agent/socrates/corpus"
)

const (
	defaultModel      = "all-MiniLM-L6-v2"
	defaultDimensions = 384
)

// DBPool is the subset of pgxpool.Pool the store uses.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Options configures the pgvector store.
type Options struct {
	ConnString string
	// Model is recorded in the modelo_usado column of every embedding row.
	Model string
	// Dimensions of the embedding vectors, used by InitSchema.
	Dimensions int
}

// Store is a corpus backed by PostgreSQL and the pgvector extension.
// It implements corpus.Store, corpus.Indexer and corpus.Source.
type Store struct {
	pool     DBPool
	embedder corpus.Embedder
	model    string
	dims     int
}

var (
	_ corpus.Store   = (*Store)(nil)
	_ corpus.Indexer = (*Store)(nil)
	_ corpus.Source  = (*Store)(nil)
)

// New connects to PostgreSQL and returns a store.
func New(ctx context.Context, embedder corpus.Embedder, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return NewWithPool(pool, embedder, opts), nil
}

// NewWithPool creates a store over an existing pool.
func NewWithPool(pool DBPool, embedder corpus.Embedder, opts Options) *Store {
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = defaultDimensions
	}
	return &Store{
		pool:     pool,
		embedder: embedder,
		model:    opts.Model,
		dims:     opts.Dimensions,
	}
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// InitSchema creates the NLP and embedding tables, the vector indexes and
// the similarity search functions.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL(s.dims)); err != nil {
		return fmt.Errorf("failed to create vector schema: %w", err)
	}
	return nil
}

// SearchDocuments returns the documents whose text embedding is closest to query.
func (s *Store) SearchDocuments(ctx context.Context, query string, limit int) ([]corpus.DocumentMatch, error) {
	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		"SELECT documento_id, titulo, tipo, similaridad, texto_preview FROM buscar_documentos_similares($1::vector, $2)",
		vec, orDefault(limit, corpus.DefaultDocumentLimit))
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	var out []corpus.DocumentMatch
	for rows.Next() {
		var m corpus.DocumentMatch
		if err := rows.Scan(&m.DocumentID, &m.Title, &m.Type, &m.Similarity, &m.Preview); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RelatedConcepts returns the concepts closest to concept.
func (s *Store) RelatedConcepts(ctx context.Context, concept string, limit int) ([]corpus.ConceptMatch, error) {
	vec, err := s.embed(ctx, concept)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		"SELECT concepto, similaridad, frecuencia_total, contexto_ejemplo FROM buscar_conceptos_similares($1::vector, $2)",
		vec, orDefault(limit, corpus.DefaultConceptLimit))
	if err != nil {
		return nil, fmt.Errorf("search concepts: %w", err)
	}
	defer rows.Close()

	var out []corpus.ConceptMatch
	for rows.Next() {
		var m corpus.ConceptMatch
		if err := rows.Scan(&m.Concept, &m.Similarity, &m.Frequency, &m.Example); err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SearchFragments returns the fragments closest to query.
func (s *Store) SearchFragments(ctx context.Context, query string, limit int) ([]corpus.FragmentMatch, error) {
	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT documento_id, fragmento_num, fragmento_texto,
		1 - (embedding <=> $1::vector) AS similaridad
		FROM fragmento_embeddings
		ORDER BY embedding <=> $1::vector
		LIMIT $2`,
		vec, orDefault(limit, corpus.DefaultFragmentLimit))
	if err != nil {
		return nil, fmt.Errorf("search fragments: %w", err)
	}
	defer rows.Close()

	var out []corpus.FragmentMatch
	for rows.Next() {
		var m corpus.FragmentMatch
		if err := rows.Scan(&m.DocumentID, &m.Number, &m.Text, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan fragment: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ConceptContext returns the stored context rows for a concept, compared
// case-insensitively.
func (s *Store) ConceptContext(ctx context.Context, concept string) ([]corpus.ConceptContext, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT contexto_ejemplo, frecuencia_total, documentos_mencionan FROM concepto_embeddings WHERE lower(concepto) = lower($1)",
		strings.TrimSpace(concept))
	if err != nil {
		return nil, fmt.Errorf("concept context: %w", err)
	}
	defer rows.Close()

	var out []corpus.ConceptContext
	for rows.Next() {
		var c corpus.ConceptContext
		if err := rows.Scan(&c.Example, &c.Frequency, &c.Documents); err != nil {
			return nil, fmt.Errorf("scan concept context: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CompareDocuments returns the concepts mentioned in both titled documents.
func (s *Store) CompareDocuments(ctx context.Context, title1, title2 string) (*corpus.Comparison, error) {
	c1, err := s.conceptsOf(ctx, title1)
	if err != nil {
		return nil, err
	}
	c2, err := s.conceptsOf(ctx, title2)
	if err != nil {
		return nil, err
	}
	return corpus.Intersect(c1, c2), nil
}

func (s *Store) conceptsOf(ctx context.Context, title string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT DISTINCT concepto FROM conceptos_filosoficos WHERE lower(titulo) = lower($1)",
		strings.TrimSpace(title))
	if err != nil {
		return nil, fmt.Errorf("concepts of %q: %w", title, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertDocument stores the document row and its title and text embeddings.
func (s *Store) UpsertDocument(ctx context.Context, doc corpus.Document, titleEmbedding, textEmbedding []float32) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO documentos_nlp (id, titulo, tipo, texto)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET titulo = EXCLUDED.titulo, tipo = EXCLUDED.tipo, texto = EXCLUDED.texto`,
		doc.ID, doc.Title, doc.Type, doc.Text); err != nil {
		return fmt.Errorf("upsert document %d: %w", doc.ID, err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO documento_embeddings
		(documento_id, embedding_titulo, embedding_texto, modelo_usado)
		VALUES ($1, $2::vector, $3::vector, $4)
		ON CONFLICT (documento_id, modelo_usado) DO UPDATE SET
			embedding_titulo = EXCLUDED.embedding_titulo,
			embedding_texto = EXCLUDED.embedding_texto,
			fecha_creacion = CURRENT_TIMESTAMP`,
		doc.ID, vectorLiteral(titleEmbedding), vectorLiteral(textEmbedding), s.model); err != nil {
		return fmt.Errorf("upsert document embedding %d: %w", doc.ID, err)
	}

	return tx.Commit(ctx)
}

// AddFragments replaces the fragments of a document.
func (s *Store) AddFragments(ctx context.Context, documentID int64, fragments []corpus.Fragment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"DELETE FROM fragmento_embeddings WHERE documento_id = $1 AND modelo_usado = $2",
		documentID, s.model); err != nil {
		return fmt.Errorf("clear fragments of %d: %w", documentID, err)
	}

	for _, f := range fragments {
		if _, err := tx.Exec(ctx, `INSERT INTO fragmento_embeddings
			(documento_id, fragmento_texto, fragmento_num, embedding, num_tokens, modelo_usado)
			VALUES ($1, $2, $3, $4::vector, $5, $6)`,
			documentID, f.Text, f.Number, vectorLiteral(f.Embedding), f.Tokens, s.model); err != nil {
			return fmt.Errorf("insert fragment %d#%d: %w", documentID, f.Number, err)
		}
	}

	return tx.Commit(ctx)
}

// AddMentions replaces the concept mentions of a document.
func (s *Store) AddMentions(ctx context.Context, documentID int64, mentions []corpus.ConceptMention) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM conceptos_filosoficos WHERE documento_id = $1", documentID); err != nil {
		return fmt.Errorf("clear mentions of %d: %w", documentID, err)
	}
	for _, m := range mentions {
		if _, err := tx.Exec(ctx,
			"INSERT INTO conceptos_filosoficos (documento_id, titulo, concepto, contexto) VALUES ($1, $2, $3, $4)",
			documentID, m.Title, m.Concept, m.Context); err != nil {
			return fmt.Errorf("insert mention %q: %w", m.Concept, err)
		}
	}

	return tx.Commit(ctx)
}

// UpsertConcept stores an aggregated concept embedding.
func (s *Store) UpsertConcept(ctx context.Context, c corpus.Concept) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO concepto_embeddings
		(concepto, contexto_ejemplo, embedding, frecuencia_total, documentos_mencionan, modelo_usado)
		VALUES ($1, $2, $3::vector, $4, $5, $6)
		ON CONFLICT (concepto, modelo_usado) DO UPDATE SET
			contexto_ejemplo = EXCLUDED.contexto_ejemplo,
			embedding = EXCLUDED.embedding,
			frecuencia_total = EXCLUDED.frecuencia_total,
			documentos_mencionan = EXCLUDED.documentos_mencionan,
			fecha_creacion = CURRENT_TIMESTAMP`,
		c.Name, c.Example, vectorLiteral(c.Embedding), c.Frequency, c.Documents, s.model)
	if err != nil {
		return fmt.Errorf("upsert concept %q: %w", c.Name, err)
	}
	return nil
}

// Documents reads every row of documentos_nlp.
func (s *Store) Documents(ctx context.Context) ([]corpus.Document, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, titulo, tipo, texto FROM documentos_nlp ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []corpus.Document
	for rows.Next() {
		var d corpus.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Type, &d.Text); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Mentions reads every row of conceptos_filosoficos.
func (s *Store) Mentions(ctx context.Context) ([]corpus.ConceptMention, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT documento_id, titulo, concepto, contexto FROM conceptos_filosoficos ORDER BY documento_id")
	if err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}
	defer rows.Close()

	var out []corpus.ConceptMention
	for rows.Next() {
		var m corpus.ConceptMention
		if err := rows.Scan(&m.DocumentID, &m.Title, &m.Concept, &m.Context); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) embed(ctx context.Context, text string) (string, error) {
	if s.embedder == nil {
		return "", errors.New("pgvector: no embedder configured")
	}
	vec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	return vectorLiteral(vec), nil
}

// vectorLiteral renders v in pgvector's text format, e.g. [0.1,-2,3.5].
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*8 + 2)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func orDefault(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
