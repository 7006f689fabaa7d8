// Package redis stores conversation checkpoints in Redis.
//
// Keys are namespaced by Prefix:
//
//	<prefix>checkpoint:<id>             JSON encoded checkpoint
//	<prefix>thread:<thread>:checkpoints sorted set of IDs scored by version
//
// A non-zero TTL expires both kinds of key, which suits short-lived chat
// sessions.
package redis
