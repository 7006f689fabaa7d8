package tool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculator(t *testing.T) {
	calc := NewCalculator()
	calc.Now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"subtraction", "2025 - 399", "1626"},
		{"precedence", "2 + 3 * 4", "14"},
		{"before christ", "399 a.C.", "2424"},
		{"before christ compact", "470 AC", "2495"},
		{"after christ", "1200 d.C.", "825"},
		{"after christ upper", "1200 DC", "825"},
		{"empty", "   ", "Error: expresión vacía"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := calc.Call(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCalculator_InvalidExpression(t *testing.T) {
	calc := NewCalculator()
	out, err := calc.Call(context.Background(), "2 +* cicuta")
	require.NoError(t, err)
	assert.True(t, len(out) > len("Error: "))
	assert.Equal(t, "Error: ", out[:len("Error: ")])
}

func TestCalculator_Metadata(t *testing.T) {
	calc := &Calculator{}
	assert.Equal(t, ActionCalculator, calc.Name())
	assert.NotEmpty(t, calc.Description())

	// A zero value falls back to the wall clock.
	out, err := calc.Call(context.Background(), "0 d.C.")
	require.NoError(t, err)
	assert.NotEqual(t, "0", out)
}
