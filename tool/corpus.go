package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools"

	"github.com/socrates-agent/socrates/corpus"
)

// Observation texts of the corpus tools.
const (
	NoResults           = "⚠️ No se encontraron resultados relevantes."
	corpusErrorPrefix   = "Error consultando la base de textos: "
	compareInputMissing = "Indica dos títulos separados por '|', por ejemplo: Fedón | La República"
)

// CorpusTool runs one kind of semantic query against a corpus.Store.
type CorpusTool struct {
	action      string
	description string
	run         func(ctx context.Context, store corpus.Store, input string) (string, error)
	store       corpus.Store
}

var _ tools.Tool = (*CorpusTool)(nil)

// Name returns the action name the model uses to pick the tool.
func (t *CorpusTool) Name() string {
	return t.action
}

// Description returns the description of the tool.
func (t *CorpusTool) Description() string {
	return t.description
}

// Call runs the query. An empty result yields NoResults; store failures are
// reported in the returned text.
func (t *CorpusTool) Call(ctx context.Context, input string) (string, error) {
	out, err := t.run(ctx, t.store, strings.TrimSpace(input))
	if err != nil {
		return corpusErrorPrefix + err.Error(), nil
	}
	if out == "" {
		return NoResults, nil
	}
	return out, nil
}

// NewCorpusTools returns one tool per vector-search action, all sharing store.
func NewCorpusTools(store corpus.Store) []*CorpusTool {
	return []*CorpusTool{
		{
			action:      ActionSearchDocuments,
			description: "Busca documentos filosóficos similares por contenido.",
			run:         searchDocuments,
			store:       store,
		},
		{
			action:      ActionRelatedConcepts,
			description: "Busca conceptos filosóficos relacionados semánticamente.",
			run:         relatedConcepts,
			store:       store,
		},
		{
			action:      ActionSearchFragments,
			description: "Busca fragmentos específicos de texto, útiles como citas.",
			run:         searchFragments,
			store:       store,
		},
		{
			action:      ActionConceptContext,
			description: "Analiza los contextos en que aparece un concepto.",
			run:         conceptContext,
			store:       store,
		},
		{
			action:      ActionCompareDocuments,
			description: "Compara dos documentos por sus conceptos comunes. Entrada: \"título 1 | título 2\".",
			run:         compareDocuments,
			store:       store,
		},
	}
}

func searchDocuments(ctx context.Context, store corpus.Store, input string) (string, error) {
	matches, err := store.SearchDocuments(ctx, input, corpus.DefaultDocumentLimit)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Title, oneLine(m.Preview)))
	}
	return strings.Join(lines, "\n"), nil
}

func relatedConcepts(ctx context.Context, store corpus.Store, input string) (string, error) {
	matches, err := store.RelatedConcepts(ctx, input, corpus.DefaultConceptLimit)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, fmt.Sprintf("%s: similaridad %.2f", m.Concept, m.Similarity))
	}
	return strings.Join(lines, "\n"), nil
}

func searchFragments(ctx context.Context, store corpus.Store, input string) (string, error) {
	matches, err := store.SearchFragments(ctx, input, corpus.DefaultFragmentLimit)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, fmt.Sprintf("[%d#%d] %s", m.DocumentID, m.Number, oneLine(m.Text)))
	}
	return strings.Join(lines, "\n"), nil
}

func conceptContext(ctx context.Context, store corpus.Store, input string) (string, error) {
	rows, err := store.ConceptContext(ctx, input)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(rows))
	for _, c := range rows {
		lines = append(lines, fmt.Sprintf("%s (frecuencia %d, documentos %d)", oneLine(c.Example), c.Frequency, c.Documents))
	}
	return strings.Join(lines, "\n"), nil
}

func compareDocuments(ctx context.Context, store corpus.Store, input string) (string, error) {
	t1, t2, err := ParseTitlePair(input)
	if err != nil {
		return compareInputMissing, nil
	}
	cmp, err := store.CompareDocuments(ctx, t1, t2)
	if err != nil {
		return "", err
	}
	if cmp == nil || cmp.Count == 0 {
		return "", nil
	}
	return fmt.Sprintf("Conceptos comunes (%d): %s", cmp.Count, strings.Join(cmp.Shared, ", ")), nil
}

var errTitlePair = errors.New("expected two titles")

// ParseTitlePair reads two document titles from "t1 | t2", a JSON array
// ["t1","t2"] or a JSON object {"titulo1":"t1","titulo2":"t2"}.
func ParseTitlePair(input string) (string, string, error) {
	input = strings.TrimSpace(input)

	switch {
	case strings.HasPrefix(input, "["):
		var pair []string
		if err := json.Unmarshal([]byte(input), &pair); err == nil && len(pair) == 2 {
			return checkPair(pair[0], pair[1])
		}
	case strings.HasPrefix(input, "{"):
		var obj struct {
			Titulo1 string `json:"titulo1"`
			Titulo2 string `json:"titulo2"`
		}
		if err := json.Unmarshal([]byte(input), &obj); err == nil {
			return checkPair(obj.Titulo1, obj.Titulo2)
		}
	}

	a, b, ok := strings.Cut(input, "|")
	if !ok {
		return "", "", errTitlePair
	}
	return checkPair(a, b)
}

func checkPair(a, b string) (string, string, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return "", "", errTitlePair
	}
	return a, b, nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
