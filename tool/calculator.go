package tool

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/tools"
)

const evaluatorErrorPrefix = "error from evaluator: "

// eraYear matches "399 a.C.", "399 aC", "1200 d.C.", "1200 DC" and so on.
var eraYear = regexp.MustCompile(`(?i)^\s*(\d{1,5})\s*(a\.?\s*c\.?|d\.?\s*c\.?)\s*$`)

// Calculator evaluates arithmetic expressions. A historical year with an
// era suffix yields the number of years elapsed until today.
type Calculator struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	evaluator tools.Calculator
}

var _ tools.Tool = (*Calculator)(nil)

// NewCalculator creates a Calculator.
func NewCalculator() *Calculator {
	return &Calculator{Now: time.Now}
}

// Name returns the name of the tool.
func (c *Calculator) Name() string {
	return ActionCalculator
}

// Description returns the description of the tool.
func (c *Calculator) Description() string {
	return "Calculadora. Evalúa expresiones como \"2025 - 399\" o \"sqrt(16)\"; " +
		"un año con era (\"399 a.C.\") devuelve los años transcurridos hasta hoy."
}

// Call evaluates input. Evaluation failures are returned as "Error: ..." text.
func (c *Calculator) Call(ctx context.Context, input string) (string, error) {
	expr := strings.TrimSpace(input)
	if expr == "" {
		return "Error: expresión vacía", nil
	}

	if m := eraYear.FindStringSubmatch(expr); m != nil {
		year, err := strconv.Atoi(m[1])
		if err != nil {
			return "Error: " + err.Error(), nil
		}
		if strings.HasPrefix(strings.ToLower(m[2]), "a") {
			year = -year
		}
		return strconv.Itoa(c.now().Year() - year), nil
	}

	out, err := c.evaluator.Call(ctx, expr)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if msg, ok := strings.CutPrefix(out, evaluatorErrorPrefix); ok {
		return "Error: " + msg, nil
	}
	return out, nil
}

func (c *Calculator) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
