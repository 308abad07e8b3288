package world

import (
	"fmt"

	"github.com/lixenwraith/sixty-below/constant"
)

// Key is the persisted record key of a chunk; NoKey means never saved
type Key uint64

const NoKey Key = 0

// PersistRecord is the unit exchanged with persistence and world loading
type PersistRecord struct {
	Key   Key
	Index int
	Block []byte // ChunkArea bytes, row-major inside the chunk
}

// Store owns all tile data in one flat byte array
// Chunks are views over the array, never separate allocations
//
// Single-threaded: callers share one goroutine (the frame loop)
// Each dirty set has exactly one consumer: renderer drains render, persistence drains save
type Store struct {
	layout Layout
	data   []byte

	renderDirty ChunkSet
	saveDirty   ChunkSet

	keys []Key
}

// NewStore allocates an all-air world for the layout
func NewStore(layout Layout) *Store {
	return &Store{
		layout:      layout,
		data:        make([]byte, layout.TileCount()),
		renderDirty: make(ChunkSet),
		saveDirty:   make(ChunkSet),
		keys:        make([]Key, layout.TotalChunks),
	}
}

// Layout returns the addressing scheme used by the store
func (s *Store) Layout() Layout {
	return s.layout
}

// Tile reads one tile; x,y must be in bounds
func (s *Store) Tile(x, y int) byte {
	return s.data[s.layout.TileIndex(x, y)]
}

// SetTile writes a tile and marks its chunk dirty for render and save
// Writing the stored value is a no-op and marks nothing
func (s *Store) SetTile(x, y int, code byte) {
	i := s.layout.TileIndex(x, y)
	if s.data[i] == code {
		return
	}
	s.data[i] = code

	chunk := s.layout.ChunkOf(x, y)
	s.renderDirty[chunk] = struct{}{}
	s.saveDirty[chunk] = struct{}{}
}

// ChunkTileBlock copies a chunk's 16 rows into a fresh 256-byte buffer
func (s *Store) ChunkTileBlock(index int) []byte {
	block := make([]byte, constant.ChunkArea)
	s.copyOut(index, block)
	return block
}

// ChunkTileBlockInto is ChunkTileBlock with a caller-owned buffer of ChunkArea bytes
func (s *Store) ChunkTileBlockInto(index int, block []byte) {
	s.copyOut(index, block[:constant.ChunkArea])
}

// ChunkPersistData packages a chunk block with its record key
func (s *Store) ChunkPersistData(index int) PersistRecord {
	return PersistRecord{
		Key:   s.keys[index],
		Index: index,
		Block: s.ChunkTileBlock(index),
	}
}

func (s *Store) copyOut(index int, block []byte) {
	wx, wy := s.layout.ChunkOrigin(index)
	row := s.layout.TileIndex(wx, wy)
	for y := 0; y < constant.ChunkSize; y++ {
		copy(block[y<<constant.ChunkShift:(y+1)<<constant.ChunkShift], s.data[row:row+constant.ChunkSize])
		row += s.layout.Width
	}
}

func (s *Store) copyIn(index int, block []byte) {
	wx, wy := s.layout.ChunkOrigin(index)
	row := s.layout.TileIndex(wx, wy)
	for y := 0; y < constant.ChunkSize; y++ {
		copy(s.data[row:row+constant.ChunkSize], block[y<<constant.ChunkShift:(y+1)<<constant.ChunkShift])
		row += s.layout.Width
	}
}

// ConsumeRenderDirty returns and clears the render-dirty set, nil when empty
func (s *Store) ConsumeRenderDirty() ChunkSet {
	if len(s.renderDirty) == 0 {
		return nil
	}
	dirty := s.renderDirty
	s.renderDirty = make(ChunkSet, len(dirty))
	return dirty
}

// ConsumeSaveDirty returns and clears the save-dirty set, nil when empty
func (s *Store) ConsumeSaveDirty() ChunkSet {
	if len(s.saveDirty) == 0 {
		return nil
	}
	dirty := s.saveDirty
	s.saveDirty = make(ChunkSet, len(dirty))
	return dirty
}

// MarkSaveDirty re-queues a chunk for the next save pass
func (s *Store) MarkSaveDirty(index int) {
	s.saveDirty[index] = struct{}{}
}

// MarkAllRenderDirty flags every chunk for redraw
func (s *Store) MarkAllRenderDirty() {
	for i := 0; i < s.layout.TotalChunks; i++ {
		s.renderDirty[i] = struct{}{}
	}
}

// ChunkKey returns the persisted key of a chunk, NoKey if never saved
func (s *Store) ChunkKey(index int) Key {
	return s.keys[index]
}

// SetChunkKey records the key assigned by the first successful save
func (s *Store) SetChunkKey(index int, key Key) {
	s.keys[index] = key
}

// BulkLoad hydrates the whole world from exactly one record per chunk, in any order
// Resets dirty sets and keys first; any malformed input is an integration bug
func (s *Store) BulkLoad(records []PersistRecord) error {
	if len(records) != s.layout.TotalChunks {
		return fmt.Errorf("bulk load: got %d chunk records, world has %d", len(records), s.layout.TotalChunks)
	}

	seen := make([]bool, s.layout.TotalChunks)
	for _, r := range records {
		if !s.layout.ValidChunk(r.Index) {
			return fmt.Errorf("bulk load: chunk index %d out of range", r.Index)
		}
		if seen[r.Index] {
			return fmt.Errorf("bulk load: duplicate chunk index %d", r.Index)
		}
		if len(r.Block) != constant.ChunkArea {
			return fmt.Errorf("bulk load: chunk %d block has %d bytes, want %d", r.Index, len(r.Block), constant.ChunkArea)
		}
		seen[r.Index] = true
	}

	clear(s.renderDirty)
	clear(s.saveDirty)
	clear(s.keys)

	for _, r := range records {
		s.keys[r.Index] = r.Key
		s.copyIn(r.Index, r.Block)
	}
	return nil
}

// Raw exposes the tile array for read-only bulk consumers (world map snapshot)
func (s *Store) Raw() []byte {
	return s.data
}

// RecordsFromTiles cuts a flat row-major tile array into one unkeyed record per chunk
// Used to hand a freshly generated world to persistence before BulkLoad
func RecordsFromTiles(layout Layout, tiles []byte) ([]PersistRecord, error) {
	if len(tiles) != layout.TileCount() {
		return nil, fmt.Errorf("records from tiles: got %d tiles, layout has %d", len(tiles), layout.TileCount())
	}
	s := &Store{layout: layout, data: tiles, keys: make([]Key, layout.TotalChunks)}
	records := make([]PersistRecord, layout.TotalChunks)
	for i := range records {
		records[i] = s.ChunkPersistData(i)
	}
	return records, nil
}
