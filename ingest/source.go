package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tmc/langchaingo/documentloaders"

	"github.com/socrates-agent/socrates/corpus"
	"github.com/socrates-agent/socrates/log"
)

const (
	defaultDocumentType = "texto"
	maxContextLength    = 300
	blockElements       = "p, li, h1, h2, h3, h4, h5, h6, blockquote, pre, div, br, tr"
)

var sentenceBreak = regexp.MustCompile(`[.!?;]+\s+|\n+`)

// StaticSource serves a fixed list of documents and mentions.
type StaticSource struct {
	DocumentList []corpus.Document
	MentionList  []corpus.ConceptMention
}

var _ corpus.Source = (*StaticSource)(nil)

// NewStaticSource creates a StaticSource.
func NewStaticSource(docs []corpus.Document, mentions []corpus.ConceptMention) *StaticSource {
	return &StaticSource{DocumentList: docs, MentionList: mentions}
}

// Documents returns the static documents.
func (s *StaticSource) Documents(ctx context.Context) ([]corpus.Document, error) {
	return s.DocumentList, nil
}

// Mentions returns the static mentions.
func (s *StaticSource) Mentions(ctx context.Context) ([]corpus.ConceptMention, error) {
	return s.MentionList, nil
}

// DirectorySource loads .txt, .md and .html files below Root. Documents are
// numbered from 1 in lexical path order. A file in a subdirectory takes the
// directory name as its type.
type DirectorySource struct {
	Root     string
	Glossary []string
	Logger   log.Logger

	policy *bluemonday.Policy
	terms  []glossaryTerm
	docs   []corpus.Document
}

var _ corpus.Source = (*DirectorySource)(nil)

type glossaryTerm struct {
	name    string
	pattern *regexp.Regexp
}

// NewDirectorySource creates a DirectorySource. Glossary terms are matched
// case-insensitively on whole words.
func NewDirectorySource(root string, glossary []string) *DirectorySource {
	s := &DirectorySource{
		Root:     root,
		Glossary: glossary,
		Logger:   log.GetDefaultLogger(),
		policy:   bluemonday.UGCPolicy(),
	}
	for _, term := range glossary {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		s.terms = append(s.terms, glossaryTerm{
			name:    strings.ToLower(term),
			pattern: regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(term) + `(?:$|[^\p{L}\p{N}])`),
		})
	}
	return s
}

// LoadGlossary reads one term per line. Blank lines and lines starting
// with '#' are ignored.
func LoadGlossary(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary %s: %w", path, err)
	}

	var terms []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key := strings.ToLower(line)
		if seen[key] {
			continue
		}
		seen[key] = true
		terms = append(terms, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read glossary %s: %w", path, err)
	}
	return terms, nil
}

// Documents walks Root and loads every supported file. Unreadable files
// are logged and skipped.
func (s *DirectorySource) Documents(ctx context.Context) ([]corpus.Document, error) {
	if s.docs != nil {
		return s.docs, nil
	}

	var docs []corpus.Document
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != s.Root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		doc, ok, err := s.load(ctx, path)
		if err != nil {
			log.OrDefault(s.Logger).Warn("skipping %s: %v", path, err)
			return nil
		}
		if !ok {
			return nil
		}
		doc.ID = int64(len(docs) + 1)
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.Root, err)
	}

	s.docs = docs
	return docs, nil
}

// Mentions scans every sentence of every document for glossary terms.
func (s *DirectorySource) Mentions(ctx context.Context) ([]corpus.ConceptMention, error) {
	docs, err := s.Documents(ctx)
	if err != nil {
		return nil, err
	}

	var mentions []corpus.ConceptMention
	for _, doc := range docs {
		for _, sentence := range Sentences(doc.Text) {
			for _, term := range s.terms {
				if !term.pattern.MatchString(sentence) {
					continue
				}
				mentions = append(mentions, corpus.ConceptMention{
					DocumentID: doc.ID,
					Title:      doc.Title,
					Concept:    term.name,
					Context:    corpus.Truncate(sentence, maxContextLength),
				})
			}
		}
	}
	return mentions, nil
}

func (s *DirectorySource) load(ctx context.Context, path string) (corpus.Document, bool, error) {
	var (
		title, text string
		err         error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		text, err = loadText(ctx, path)
	case ".md", ".markdown":
		var raw []byte
		if raw, err = os.ReadFile(path); err == nil {
			title, text, err = s.htmlText(markdown.ToHTML(raw, nil, nil))
		}
	case ".html", ".htm":
		var raw []byte
		if raw, err = os.ReadFile(path); err == nil {
			title, text, err = s.htmlText(raw)
		}
	default:
		return corpus.Document{}, false, nil
	}
	if err != nil {
		return corpus.Document{}, false, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return corpus.Document{}, false, nil
	}
	if title == "" {
		title = titleFromPath(path)
	}
	return corpus.Document{
		Title: title,
		Type:  s.documentType(path),
		Text:  text,
	}, true, nil
}

func loadText(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	docs, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.PageContent)
	}
	return strings.Join(parts, "\n"), nil
}

// htmlText returns the page title and its visible text, one block per line.
func (s *DirectorySource) htmlText(raw []byte) (string, string, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", "", err
	}
	title := strings.TrimSpace(page.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(page.Find("h1").First().Text())
	}

	body, err := page.Find("body").Html()
	if err != nil {
		return "", "", err
	}
	clean, err := goquery.NewDocumentFromReader(strings.NewReader(s.policy.Sanitize(body)))
	if err != nil {
		return "", "", err
	}
	clean.Find(blockElements).Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	return title, normalizeLines(clean.Text()), nil
}

func (s *DirectorySource) documentType(path string) string {
	rel, err := filepath.Rel(s.Root, path)
	if err != nil {
		return defaultDocumentType
	}
	dir := filepath.Dir(rel)
	if dir == "." {
		return defaultDocumentType
	}
	return strings.Split(filepath.ToSlash(dir), "/")[0]
}

func titleFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

func normalizeLines(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// Sentences splits text on sentence punctuation and line breaks.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentenceBreak.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
