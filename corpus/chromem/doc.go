// Package chromem is an embedded corpus backend built on chromem-go. It
// needs no database server and persists to a local directory.
package chromem
