package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanReply(t *testing.T) {
	assert.Equal(t, "¿Y tú qué crees?", CleanReply("[INST] ¿Y tú qué crees? [/INST]\n"))
	assert.Equal(t, EmptyReply, CleanReply("  [INST][/INST] "))
	assert.Equal(t, EmptyReply, CleanReply(""))
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    Decision
		ok      bool
		wantErr bool
	}{
		{
			name:  "plain answer",
			reply: "Solo sé que no sé nada.",
		},
		{
			name:  "json only",
			reply: `{"action": "wikipedia", "input": "Sócrates"}`,
			want:  Decision{Action: "wikipedia", Input: "Sócrates"},
			ok:    true,
		},
		{
			name:  "json surrounded by text",
			reply: "Pensemos juntos.\n{\"action\": \"calcular\",\n \"input\": \"2025 - 399\"}\nVeamos.",
			want:  Decision{Action: "calcular", Input: "2025 - 399"},
			ok:    true,
		},
		{
			name:  "numeric input keeps its text",
			reply: `{"action": "calcular", "input": 1.50}`,
			want:  Decision{Action: "calcular", Input: "1.50"},
			ok:    true,
		},
		{
			name:  "object input keeps its text",
			reply: `{"action": "comparar_documentos_por_conceptos", "input": {"titulo1": "Fedón", "titulo2": "Critón"}}`,
			want:  Decision{Action: "comparar_documentos_por_conceptos", Input: `{"titulo1": "Fedón", "titulo2": "Critón"}`},
			ok:    true,
		},
		{
			name:  "missing input",
			reply: `{"action": "voz"}`,
			want:  Decision{Action: "voz"},
			ok:    true,
		},
		{
			name:  "no action",
			reply: `{"input": "algo"}`,
		},
		{
			name:    "malformed",
			reply:   `{"action": wikipedia}`,
			wantErr: true,
		},
		{
			name:  "braces out of order",
			reply: "} y luego {",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok, err := ParseDecision(tt.reply)
			if tt.wantErr {
				require.Error(t, err)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, d)
		})
	}
}
