package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentenceSplitter(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		text      string
		want      []string
	}{
		{
			name:      "packs sentences up to the limit",
			chunkSize: 20,
			text:      "Uno dos. Tres cuatro. Cinco.",
			want:      []string{"Uno dos.", "Tres cuatro. Cinco."},
		},
		{
			name:      "long sentence is its own chunk",
			chunkSize: 5,
			text:      "Filosofar es aprender. Sí.",
			want:      []string{"Filosofar es aprender.", "Sí."},
		},
		{
			name:      "fits in one chunk",
			chunkSize: 500,
			text:      "  Solo sé que no sé nada.  ",
			want:      []string{"Solo sé que no sé nada."},
		},
		{
			name:      "counts runes not bytes",
			chunkSize: 12,
			text:      "ñññññ. ááááá.",
			want:      []string{"ñññññ. ááááá."},
		},
		{
			name:      "empty",
			chunkSize: 10,
			text:      "   ",
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewSentenceSplitter(tt.chunkSize).SplitText(tt.text))
		})
	}
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount("  "))
	assert.Equal(t, 4, WordCount("conócete a ti\tmismo"))
}
