package utils

import "unicode"

// SplitText cuts text into rune windows of at most chunkSize with overlap
// runes shared between neighbours. A window end is pulled back to the last
// whitespace in its final quarter so words are not cut in half.
func SplitText(text string, chunkSize int, overlap int) []string {
	runes := []rune(text)
	if chunkSize <= 0 || len(runes) <= chunkSize {
		return []string{text}
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	var chunks []string
	for start := 0; start < len(runes); {
		end := start + chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		end = softBreak(runes, start, end, chunkSize/4)
		chunks = append(chunks, string(runes[start:end]))

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func softBreak(runes []rune, start, end, window int) int {
	for i := end; i > end-window && i > start; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
