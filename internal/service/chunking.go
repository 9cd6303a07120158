package service

import "strings"

// DefaultChunkMaxChars caps the size of one embedded chunk. Large enough to
// hold several policy clauses, small enough to stay inside the embedding
// model's input limit.
const DefaultChunkMaxChars = 8192

// SplitText splits text into whitespace-delimited word chunks. Words are
// accumulated greedily: each word costs len(word)+1 characters (the word plus
// its joining space), and a chunk is flushed when the next word would push it
// past maxChars. Words are never split, so a single word longer than maxChars
// becomes a chunk on its own. Chunk order follows word order and every word
// appears in exactly one chunk.
func SplitText(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultChunkMaxChars
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, 4)
	current := make([]string, 0, 64)
	currentLen := 0

	for _, word := range words {
		if currentLen+len(word)+1 > maxChars && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = current[:0]
			currentLen = 0
		}
		current = append(current, word)
		currentLen += len(word) + 1
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}
