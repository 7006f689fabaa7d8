package tool

import (
	"sort"
	"strings"

	"github.com/tmc/langchaingo/tools"
)

// Action names the model may emit in {"action": ...}.
const (
	ActionWikipedia        = "wikipedia"
	ActionCalculator       = "calcular"
	ActionSpeech           = "voz"
	ActionSearchDocuments  = "buscar_documentos_por_contenido"
	ActionRelatedConcepts  = "buscar_conceptos_relacionados"
	ActionSearchFragments  = "buscar_fragmentos_especificos"
	ActionConceptContext   = "analizar_contexto_concepto"
	ActionCompareDocuments = "comparar_documentos_por_conceptos"
)

// VectorActions lists the actions served by the corpus tools.
var VectorActions = []string{
	ActionSearchDocuments,
	ActionRelatedConcepts,
	ActionSearchFragments,
	ActionConceptContext,
	ActionCompareDocuments,
}

// IsVectorAction reports whether action is one of VectorActions.
func IsVectorAction(action string) bool {
	action = NormalizeAction(action)
	for _, a := range VectorActions {
		if a == action {
			return true
		}
	}
	return false
}

// NormalizeAction lower-cases and trims an action name.
func NormalizeAction(action string) string {
	return strings.ToLower(strings.TrimSpace(action))
}

// Registry maps action names to tools.
type Registry struct {
	tools map[string]tools.Tool
}

// NewRegistry registers the given tools under their Name.
func NewRegistry(ts ...tools.Tool) *Registry {
	r := &Registry{tools: make(map[string]tools.Tool, len(ts))}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool. Nil tools are ignored.
func (r *Registry) Register(t tools.Tool) {
	if t == nil {
		return
	}
	r.tools[NormalizeAction(t.Name())] = t
}

// Lookup returns the tool for action.
func (r *Registry) Lookup(action string) (tools.Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[NormalizeAction(action)]
	return t, ok
}

// Actions returns the registered action names, sorted.
func (r *Registry) Actions() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
