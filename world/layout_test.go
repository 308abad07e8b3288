package world

import "testing"

func TestNewLayoutForSize(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantErr       bool
		wantChunks    int
		wantPerRow    int
	}{
		{"default", 1024, 512, false, 2048, 64},
		{"height not power of two", 2048, 768, true, 0, 0},
		{"tiny", 16, 16, false, 1, 1},
		{"below chunk", 8, 16, true, 0, 0},
		{"not pow2", 1000, 512, true, 0, 0},
		{"zero", 0, 512, true, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLayoutForSize(tt.width, tt.height)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLayoutForSize(%d, %d) err = %v, wantErr %v", tt.width, tt.height, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if l.TotalChunks != tt.wantChunks {
				t.Errorf("TotalChunks = %d, want %d", l.TotalChunks, tt.wantChunks)
			}
			if l.ChunksPerRow != tt.wantPerRow {
				t.Errorf("ChunksPerRow = %d, want %d", l.ChunksPerRow, tt.wantPerRow)
			}
		})
	}
}

func TestChunkIndexRoundTrip(t *testing.T) {
	l := DefaultLayout()

	for i := 0; i < l.TotalChunks; i++ {
		cx, cy := l.DecodeChunk(i)
		if got := l.ChunkIndex(cx, cy); got != i {
			t.Fatalf("ChunkIndex(DecodeChunk(%d)) = %d", i, got)
		}
		// Row-major: index = cy*chunksPerRow + cx
		if want := cy*l.ChunksPerRow + cx; want != i {
			t.Fatalf("chunk %d decoded to (%d,%d), row-major gives %d", i, cx, cy, want)
		}
	}
}

func TestChunkOfMatchesDivision(t *testing.T) {
	l := DefaultLayout()

	for y := 0; y < l.Height; y += 7 {
		for x := 0; x < l.Width; x += 5 {
			want := (y/16)*l.ChunksPerRow + x/16
			if got := l.ChunkOf(x, y); got != want {
				t.Fatalf("ChunkOf(%d,%d) = %d, want %d", x, y, got, want)
			}
			wx, wy := l.ChunkOrigin(want)
			if x-wx < 0 || x-wx >= 16 || y-wy < 0 || y-wy >= 16 {
				t.Fatalf("ChunkOrigin(%d) = (%d,%d) does not contain (%d,%d)", want, wx, wy, x, y)
			}
			if got, want := l.BlockOffset(x, y), (y-wy)*16+(x-wx); got != want {
				t.Fatalf("BlockOffset(%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
}
