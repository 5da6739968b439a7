package chunking

import (
	"regexp"
	"strings"

	"github.com/samber/lo"

	"audiotranslator/internal/domain"
)

// DefaultSentencesPerChunk is the group size used when none is configured.
const DefaultSentencesPerChunk = 30

var (
	sentenceBoundary  = regexp.MustCompile(`[.!?]+`)
	paragraphBoundary = regexp.MustCompile(`\n\s*\n`)
)

// Sentences splits text on sentence-terminal punctuation and drops empty fragments.
func Sentences(text string) []string {
	fragments := sentenceBoundary.Split(text, -1)
	sentences := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		trimmed := strings.TrimSpace(fragment)
		if trimmed == "" {
			continue
		}
		sentences = append(sentences, trimmed)
	}
	return sentences
}

// Split groups the sentences of text into chunks of size sentences each.
// The last chunk may be smaller. Each chunk is rejoined with ". " and ends with ".".
func Split(text string, size int) []string {
	if size <= 0 {
		size = DefaultSentencesPerChunk
	}
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return []string{}
	}
	return lo.Map(lo.Chunk(sentences, size), func(group []string, _ int) string {
		return strings.Join(group, ". ") + "."
	})
}

// Stats computes simple statistics for text.
func Stats(text string) domain.TextStats {
	paragraphs := lo.Filter(paragraphBoundary.Split(text, -1), func(p string, _ int) bool {
		return strings.TrimSpace(p) != ""
	})
	return domain.TextStats{
		Characters: len([]rune(text)),
		Words:      len(strings.Fields(text)),
		Sentences:  len(Sentences(text)),
		Paragraphs: len(paragraphs),
	}
}
