package pgvector

import "fmt"

// schemaSQL returns the DDL for the corpus. Dimensions is baked into the
// vector column types.
func schemaSQL(dims int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documentos_nlp (
	id BIGINT PRIMARY KEY,
	titulo TEXT NOT NULL,
	tipo TEXT NOT NULL DEFAULT '',
	texto TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conceptos_filosoficos (
	id BIGSERIAL PRIMARY KEY,
	documento_id BIGINT NOT NULL REFERENCES documentos_nlp (id) ON DELETE CASCADE,
	titulo TEXT NOT NULL,
	concepto TEXT NOT NULL,
	contexto TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_conceptos_titulo ON conceptos_filosoficos (titulo);
CREATE INDEX IF NOT EXISTS idx_conceptos_concepto ON conceptos_filosoficos (concepto);

CREATE TABLE IF NOT EXISTS documento_embeddings (
	documento_id BIGINT NOT NULL REFERENCES documentos_nlp (id) ON DELETE CASCADE,
	embedding_titulo vector(%[1]d),
	embedding_texto vector(%[1]d),
	modelo_usado TEXT NOT NULL,
	fecha_creacion TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (documento_id, modelo_usado)
);

CREATE TABLE IF NOT EXISTS fragmento_embeddings (
	id BIGSERIAL PRIMARY KEY,
	documento_id BIGINT NOT NULL REFERENCES documentos_nlp (id) ON DELETE CASCADE,
	fragmento_texto TEXT NOT NULL,
	fragmento_num INTEGER NOT NULL,
	embedding vector(%[1]d),
	num_tokens INTEGER,
	modelo_usado TEXT NOT NULL,
	fecha_creacion TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS concepto_embeddings (
	concepto TEXT NOT NULL,
	contexto_ejemplo TEXT,
	embedding vector(%[1]d),
	frecuencia_total INTEGER,
	documentos_mencionan INTEGER,
	modelo_usado TEXT NOT NULL,
	fecha_creacion TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (concepto, modelo_usado)
);

CREATE INDEX IF NOT EXISTS idx_documento_embeddings_texto
	ON documento_embeddings USING hnsw (embedding_texto vector_cosine_ops);
CREATE INDEX IF NOT EXISTS idx_fragmento_embeddings
	ON fragmento_embeddings USING hnsw (embedding vector_cosine_ops);
CREATE INDEX IF NOT EXISTS idx_concepto_embeddings
	ON concepto_embeddings USING hnsw (embedding vector_cosine_ops);

CREATE OR REPLACE FUNCTION buscar_documentos_similares(consulta vector, limite INTEGER DEFAULT 5)
RETURNS TABLE (
	documento_id BIGINT,
	titulo TEXT,
	tipo TEXT,
	similaridad DOUBLE PRECISION,
	texto_preview TEXT
)
LANGUAGE sql STABLE AS $$
	SELECT d.id, d.titulo, d.tipo,
		1 - (e.embedding_texto <=> consulta),
		LEFT(d.texto, 200)
	FROM documento_embeddings e
	JOIN documentos_nlp d ON d.id = e.documento_id
	ORDER BY e.embedding_texto <=> consulta
	LIMIT limite
$$;

CREATE OR REPLACE FUNCTION buscar_conceptos_similares(consulta vector, limite INTEGER DEFAULT 10)
RETURNS TABLE (
	concepto TEXT,
	similaridad DOUBLE PRECISION,
	frecuencia_total INTEGER,
	contexto_ejemplo TEXT
)
LANGUAGE sql STABLE AS $$
	SELECT c.concepto,
		1 - (c.embedding <=> consulta),
		c.frecuencia_total,
		c.contexto_ejemplo
	FROM concepto_embeddings c
	ORDER BY c.embedding <=> consulta
	LIMIT limite
$$;
`, dims)
}
