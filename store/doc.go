// Package store persists conversation checkpoints.
//
// The graph runtime saves a Checkpoint after every node it executes when a
// thread ID is supplied, so a conversation with the agent can be resumed by a
// later process. Backends live in subpackages:
//
//   - store/memory: process-local map, the default for the chat REPL
//   - store/sqlite: single file database via mattn/go-sqlite3
//   - store/postgres: JSONB rows through a pgx pool
//   - store/redis: one key per checkpoint plus a sorted set per thread
//
// All of them return ErrNotFound (possibly wrapped) for unknown IDs and
// threads, so callers can test with errors.Is.
package store
