package prompts

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemPrompt(t *testing.T) {
	base := SystemPrompt(false)
	full := SystemPrompt(true)

	assert.True(t, strings.HasPrefix(base, "Eres Sócrates"))
	assert.Contains(t, base, "ESTILO:")
	assert.Contains(t, base, "REGLAS:")
	assert.NotContains(t, base, "Acciones permitidas")

	assert.True(t, strings.HasPrefix(full, base))
	assert.Contains(t, full, `"comparar_documentos_por_conceptos"`)
	assert.Contains(t, full, "Teeteto")
}

func TestFollowup(t *testing.T) {
	keys := []string{
		FollowupWikipedia, FollowupSpeech, FollowupCalculator,
		"buscar_documentos_por_contenido",
		"buscar_conceptos_relacionados",
		"buscar_fragmentos_especificos",
		"analizar_contexto_concepto",
		"comparar_documentos_por_conceptos",
	}
	for _, k := range keys {
		assert.NotEmpty(t, Followup(k), k)
	}
	assert.Empty(t, Followup("desconocida"))
}

func TestRandomPhrase(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 20 {
		assert.Contains(t, Phrases, RandomPhrase(r))
	}
	assert.Contains(t, Phrases, RandomPhrase(nil))
}
