// Package pgvector stores the corpus in PostgreSQL using the pgvector
// extension. Embeddings are sent as pgvector text literals cast with
// ::vector, so no extra driver types are needed.
package pgvector
