// Package chunker splits lecture text into overlapping fixed-size windows
// for embedding. Window boundaries are byte offsets: the first window starts
// at 0, each subsequent window starts size−overlap bytes after the previous,
// and the final window is bounded by the end of the text.
package chunker

// Default window parameters, sized so a typical lecture paragraph run fits
// in one embedding call while consecutive windows share enough context to
// survive a boundary cut mid-sentence.
const (
	// DefaultSize is the maximum number of bytes per chunk.
	DefaultSize = 1700
	// DefaultOverlap is the number of bytes shared by consecutive chunks.
	DefaultOverlap = 200
)

// Config holds the chunking window parameters.
type Config struct {
	// Size is the maximum number of bytes per chunk. Defaults to
	// DefaultSize when zero or negative.
	Size int
	// Overlap is the number of bytes shared by consecutive chunks. Values
	// below zero are treated as zero; values >= Size are clamped to Size/10
	// so the stride stays positive.
	Overlap int
}

// normalize resolves zero and out-of-range values to usable parameters.
func (c Config) normalize() Config {
	if c.Size <= 0 {
		c.Size = DefaultSize
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Overlap >= c.Size {
		c.Overlap = c.Size / 10
	}
	return c
}

// Split divides text into overlapping windows per cfg. Empty text produces
// an empty slice. The returned windows are substrings of text in order of
// their start offset; every window except possibly the last has exactly
// cfg.Size bytes, and consecutive windows overlap by exactly cfg.Overlap.
func Split(text string, cfg Config) []string {
	cfg = cfg.normalize()
	if len(text) == 0 {
		return nil
	}

	var chunks []string
	stride := cfg.Size - cfg.Overlap

	for start := 0; start < len(text); start += stride {
		end := start + cfg.Size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}

	return chunks
}
