package chunker

import (
	"strings"
	"testing"
)

func TestSplit_EmptyText(t *testing.T) {
	t.Parallel()
	if got := Split("", Config{Size: 100, Overlap: 10}); len(got) != 0 {
		t.Errorf("want 0 chunks for empty text, got %d", len(got))
	}
}

func TestSplit_TextShorterThanWindow(t *testing.T) {
	t.Parallel()
	chunks := Split("short lecture", Config{Size: 100, Overlap: 10})
	if len(chunks) != 1 {
		t.Fatalf("want 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "short lecture" {
		t.Errorf("want full text back, got %q", chunks[0])
	}
}

func TestSplit_WindowAndOverlapExact(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("a", 250)
	chunks := Split(text, Config{Size: 100, Overlap: 20})

	// stride 80: windows at 0, 80, 160, 240.
	if len(chunks) != 4 {
		t.Fatalf("want 4 chunks, got %d", len(chunks))
	}
	for i, c := range chunks[:3] {
		if len(c) != 100 {
			t.Errorf("chunk %d: want 100 bytes, got %d", i, len(c))
		}
	}
	if len(chunks[3]) != 10 {
		t.Errorf("final chunk: want 10 bytes, got %d", len(chunks[3]))
	}

	// Consecutive windows share exactly Overlap bytes.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		tail := prev[len(prev)-20:]
		if !strings.HasPrefix(chunks[i], tail) {
			t.Errorf("chunk %d does not start with the 20-byte tail of chunk %d", i, i-1)
		}
	}
}

func TestSplit_ChunkCountFormula(t *testing.T) {
	t.Parallel()

	// For L > overlap, the number of windows is ceil((L − overlap) / (size − overlap)).
	tests := []struct {
		length, size, overlap int
	}{
		{2500, 1700, 200},
		{1700, 1700, 200},
		{1701, 1700, 200},
		{5000, 1000, 100},
		{999, 1000, 100},
	}
	for _, tt := range tests {
		text := strings.Repeat("x", tt.length)
		chunks := Split(text, Config{Size: tt.size, Overlap: tt.overlap})

		stride := tt.size - tt.overlap
		want := (tt.length - tt.overlap + stride - 1) / stride
		if want < 1 {
			want = 1
		}
		if len(chunks) != want {
			t.Errorf("L=%d size=%d overlap=%d: want %d chunks, got %d",
				tt.length, tt.size, tt.overlap, want, len(chunks))
		}
	}
}

func TestSplit_LectureScenario(t *testing.T) {
	t.Parallel()

	// 2500 chars at size 1700 / overlap 200 must produce exactly 2 chunks.
	text := strings.Repeat("l", 2500)
	chunks := Split(text, Config{Size: 1700, Overlap: 200})
	if len(chunks) != 2 {
		t.Fatalf("want 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 1700 {
		t.Errorf("first chunk: want 1700 bytes, got %d", len(chunks[0]))
	}
	if len(chunks[1]) != 1000 {
		t.Errorf("second chunk: want 1000 bytes (offset 1500..2500), got %d", len(chunks[1]))
	}
}

func TestConfig_Normalize(t *testing.T) {
	t.Parallel()

	// Overlap >= Size must not produce a zero or negative stride.
	chunks := Split(strings.Repeat("z", 500), Config{Size: 100, Overlap: 100})
	if len(chunks) == 0 {
		t.Fatal("want chunks despite degenerate overlap")
	}

	// Zero size falls back to the default window.
	c := Config{}.normalize()
	if c.Size != DefaultSize {
		t.Errorf("normalize zero config: want Size %d, got %d", DefaultSize, c.Size)
	}
}
