// Package ingest builds the semantic index of the philosophical corpus.
//
// A Vectorizer reads documents and concept mentions from a corpus.Source,
// embeds them and writes the results to a corpus.Indexer in three passes:
// whole documents, sentence-aligned fragments of long documents, and
// concepts mentioned often enough across the corpus.
//
// DirectorySource loads plain text, Markdown and HTML files from disk and
// finds concept mentions by scanning sentences for glossary terms.
package ingest
