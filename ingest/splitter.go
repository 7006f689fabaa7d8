package ingest

import (
	"strings"
	"unicode/utf8"
)

// SentenceSplitter splits text into chunks of at most ChunkSize runes
// without breaking sentences. A sentence longer than ChunkSize becomes a
// chunk of its own.
type SentenceSplitter struct {
	ChunkSize int
	Separator string
}

// NewSentenceSplitter creates a splitter that breaks on ". ".
func NewSentenceSplitter(chunkSize int) *SentenceSplitter {
	return &SentenceSplitter{
		ChunkSize: chunkSize,
		Separator: ". ",
	}
}

// SplitText splits text into chunks.
func (s *SentenceSplitter) SplitText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := strings.Split(text, s.Separator)
	// Restore the period eaten by the separator.
	term := strings.TrimRight(s.Separator, " ")
	for i := range len(sentences) - 1 {
		sentences[i] += term
	}

	var (
		chunks  []string
		current strings.Builder
	)
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		size := utf8.RuneCountInString(current.String()) + 1 + utf8.RuneCountInString(sentence)
		if current.Len() > 0 && size > s.ChunkSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// WordCount returns the number of whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
