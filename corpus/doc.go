// Package corpus defines the vector store of Platonic texts queried by the
// agent's search tools and filled by the ingest pipeline.
//
// Two backends are provided: corpus/pgvector (PostgreSQL with the pgvector
// extension) and corpus/chromem (an embedded store persisted to disk).
package corpus
