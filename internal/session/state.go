package session

import (
	"fmt"
	"strings"
	"sync"

	"audiotranslator/internal/chunking"
	"audiotranslator/internal/domain"
)

// State holds the chunk list, the translation map and the chunk pointer.
type State struct {
	mu           sync.RWMutex
	sourceName   string
	chunks       []string
	stats        domain.TextStats
	current      int
	translations domain.TranslationMap
}

func NewState() *State {
	return &State{translations: domain.TranslationMap{}}
}

// Load replaces the chunk list. The pointer returns to 0 and the translation map is cleared.
func (s *State) Load(sourceName string, text string, chunks []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sourceName = sourceName
	s.chunks = append([]string(nil), chunks...)
	s.stats = chunking.Stats(text)
	s.current = 0
	s.translations = domain.TranslationMap{}
}

// Navigate moves the pointer by delta. Targets outside the chunk range are ignored.
func (s *State) Navigate(delta int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current + delta
	if next < 0 || next >= len(s.chunks) {
		return false
	}
	s.current = next
	return true
}

// Current returns the chunk under the pointer.
func (s *State) Current() (int, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.chunks) == 0 {
		return 0, "", false
	}
	return s.current, s.chunks[s.current], true
}

func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *State) Chunks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.chunks...)
}

func (s *State) SourceName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourceName
}

// MergeTranslations adds translated chunks without dropping existing entries.
// Indices outside the chunk range are ignored. Returns the completed count.
func (s *State) MergeTranslations(incoming domain.TranslationMap) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for index, text := range incoming {
		if index < 0 || index >= len(s.chunks) {
			continue
		}
		s.translations[index] = text
	}
	return len(s.translations)
}

func (s *State) Translations() domain.TranslationMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.translations.Clone()
}

func (s *State) HasTranslations() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.translations) > 0
}

// Progress is the share of chunks that have a translation, in [0, 1].
func (s *State) Progress() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return progress(len(s.translations), len(s.chunks))
}

// Snapshot returns the render model for the translation view.
func (s *State) Snapshot() domain.TranslationSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := domain.TranslationSnapshot{
		SourceName:   s.sourceName,
		Chunks:       len(s.chunks),
		CurrentIndex: s.current,
		Completed:    len(s.translations),
		Progress:     progress(len(s.translations), len(s.chunks)),
		Translations: s.translations.Clone(),
		Stats:        s.stats,
	}
	if len(s.chunks) > 0 {
		snapshot.Original = s.chunks[s.current]
		snapshot.Translated = s.translations[s.current]
		snapshot.HasPrev = s.current > 0
		snapshot.HasNext = s.current < len(s.chunks)-1
	}
	return snapshot
}

func progress(done int, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}

// Placeholder marks an untranslated chunk in an assembled document. number is 1-based.
func Placeholder(number int) string {
	return fmt.Sprintf("[Chunk %d not translated]", number)
}

// Assemble joins translations in chunk order, substituting placeholders for gaps.
func Assemble(chunkCount int, translations domain.TranslationMap) string {
	parts := make([]string, 0, chunkCount)
	for i := 0; i < chunkCount; i++ {
		if text, ok := translations[i]; ok {
			parts = append(parts, text)
			continue
		}
		parts = append(parts, Placeholder(i+1))
	}
	return strings.Join(parts, "\n\n")
}
