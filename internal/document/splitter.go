package document

import "strings"

// defaultSeparators are tried in order: paragraph breaks first, then line
// breaks, then words, then a hard character cut as the last resort.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter splits text into chunks of at most Size characters, consecutive
// chunks sharing roughly Overlap characters of context. It prefers splitting
// on paragraph and line boundaries, falling back to word and character
// boundaries only for oversized pieces.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter creates a Splitter. size must be positive and overlap must be
// smaller than size; config.Validate enforces this before we get here.
func NewSplitter(size, overlap int) *Splitter {
	return &Splitter{size: size, overlap: overlap}
}

// Split splits text into chunks. Whitespace-only chunks are dropped.
func (s *Splitter) Split(text string) []string {
	raw := s.split(text, defaultSeparators)

	chunks := make([]string, 0, len(raw))
	for _, c := range raw {
		if c = strings.TrimSpace(c); c != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the first separator present in the text; "" always matches and
	// means a hard cut at the size limit.
	sep := ""
	var rest []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	if sep == "" {
		return s.hardCut(text)
	}

	var chunks []string
	var fitting []string
	for _, piece := range strings.Split(text, sep) {
		if len(piece) <= s.size {
			fitting = append(fitting, piece)
			continue
		}
		// Flush what we merged so far, then descend into the oversized
		// piece with the finer-grained separators.
		chunks = append(chunks, s.merge(fitting, sep)...)
		fitting = nil
		chunks = append(chunks, s.split(piece, rest)...)
	}
	return append(chunks, s.merge(fitting, sep)...)
}

// merge greedily joins pieces into chunks up to the size limit, carrying a
// tail of at most overlap characters into the next chunk.
func (s *Splitter) merge(pieces []string, sep string) []string {
	joinedLen := func(count, chars int) int {
		if count <= 1 {
			return chars
		}
		return chars + (count-1)*len(sep)
	}

	var chunks []string
	var current []string
	chars := 0

	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if len(current) > 0 && joinedLen(len(current)+1, chars+len(piece)) > s.size {
			chunks = append(chunks, strings.Join(current, sep))
			// Drop leading pieces until the retained tail fits the
			// overlap budget and leaves room for the new piece.
			for len(current) > 0 &&
				(joinedLen(len(current), chars) > s.overlap ||
					joinedLen(len(current)+1, chars+len(piece)) > s.size) {
				chars -= len(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		chars += len(piece)
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, sep))
	}
	return chunks
}

// hardCut slices text into size-length windows advancing by size-overlap,
// on rune boundaries so multi-byte characters survive intact.
func (s *Splitter) hardCut(text string) []string {
	runes := []rune(text)
	step := s.size - s.overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
