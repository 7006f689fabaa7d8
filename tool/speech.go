package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/tools"
)

// Observation texts returned by TextToSpeech.
const (
	SpeechEmptyText = "No hay texto para convertir"
	speechSuccess   = "Audio generado exitosamente: "
	speechError     = "Error generando audio: "
)

// TextToSpeech synthesises speech through an OpenAI-compatible
// /audio/speech endpoint (OpenAI, LocalAI with bark or piper, etc.) and
// writes the audio to disk.
type TextToSpeech struct {
	Model     string
	Voice     string
	Format    string
	OutputDir string

	client *openai.Client
	now    func() time.Time
}

var _ tools.Tool = (*TextToSpeech)(nil)

// SpeechOptions configures TextToSpeech.
type SpeechOptions struct {
	BaseURL    string
	APIKey     string
	Model      string
	Voice      string
	Format     string
	OutputDir  string
	HTTPClient *http.Client
}

// NewTextToSpeech creates a speech tool.
func NewTextToSpeech(opts SpeechOptions) *TextToSpeech {
	apiKey := opts.APIKey
	if apiKey == "" {
		// Local servers ignore the key but go-openai always sends one.
		apiKey = "sk-local"
	}
	config := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		config.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		config.HTTPClient = opts.HTTPClient
	}

	t := &TextToSpeech{
		Model:     opts.Model,
		Voice:     opts.Voice,
		Format:    opts.Format,
		OutputDir: opts.OutputDir,
		client:    openai.NewClientWithConfig(config),
		now:       time.Now,
	}
	if t.Model == "" {
		t.Model = string(openai.TTSModel1)
	}
	if t.Voice == "" {
		t.Voice = string(openai.VoiceAlloy)
	}
	if t.Format == "" {
		t.Format = string(openai.SpeechResponseFormatWav)
	}
	if t.OutputDir == "" {
		t.OutputDir = "."
	}
	return t
}

// Name returns the name of the tool.
func (t *TextToSpeech) Name() string {
	return ActionSpeech
}

// Description returns the description of the tool.
func (t *TextToSpeech) Description() string {
	return "Convierte texto en audio con la voz de Sócrates y devuelve la ruta del archivo generado."
}

// Call synthesises input. Failures are reported in the returned text.
func (t *TextToSpeech) Call(ctx context.Context, input string) (string, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return SpeechEmptyText, nil
	}

	path, err := t.synthesize(ctx, text)
	if err != nil {
		return speechError + err.Error(), nil
	}
	return speechSuccess + path, nil
}

func (t *TextToSpeech) synthesize(ctx context.Context, text string) (string, error) {
	resp, err := t.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(t.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(t.Voice),
		ResponseFormat: openai.SpeechResponseFormat(t.Format),
	})
	if err != nil {
		return "", err
	}
	defer resp.Close()

	if err := os.MkdirAll(t.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(t.OutputDir, fmt.Sprintf("socrates_%d.%s", t.now().UnixNano(), t.Format))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	if _, err := io.Copy(f, resp); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close audio file: %w", err)
	}
	return path, nil
}
