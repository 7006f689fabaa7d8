package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	calc := NewCalculator()
	wiki := NewWikipediaSearch()
	reg := NewRegistry(calc, wiki, nil)
	for _, ct := range NewCorpusTools(&fakeStore{}) {
		reg.Register(ct)
	}

	got, ok := reg.Lookup(" CALCULAR ")
	require.True(t, ok)
	assert.Same(t, calc, got)

	got, ok = reg.Lookup("wikipedia")
	require.True(t, ok)
	assert.Same(t, wiki, got)

	_, ok = reg.Lookup("voz")
	assert.False(t, ok)

	assert.Equal(t, []string{
		ActionConceptContext,
		ActionRelatedConcepts,
		ActionSearchDocuments,
		ActionSearchFragments,
		ActionCalculator,
		ActionCompareDocuments,
		ActionWikipedia,
	}, reg.Actions())

	var nilReg *Registry
	_, ok = nilReg.Lookup("calcular")
	assert.False(t, ok)
}

func TestIsVectorAction(t *testing.T) {
	for _, a := range VectorActions {
		assert.True(t, IsVectorAction(a), a)
	}
	assert.True(t, IsVectorAction("  Buscar_Documentos_Por_Contenido "))
	assert.False(t, IsVectorAction("wikipedia"))
	assert.False(t, IsVectorAction(""))
}
