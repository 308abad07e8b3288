package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/sixty-below/world"
)

// Gamestate keys written when a world is created
const (
	GameStateWorldID = "world_id"
	GameStateSeed    = "seed"
	GameStateCreated = "created_at"
)

// ErrWorldMismatch means the saved world does not fit the configured layout
var ErrWorldMismatch = errors.New("saved world does not match layout")

// Generator produces a full flat tile array for a layout and seed
type Generator func(layout world.Layout, seed int64) []byte

// WorldInfo identifies the world that was opened
type WorldInfo struct {
	ID        string
	Seed      int64
	Generated bool
	Chunks    int
}

// OpenWorld hydrates store from repo, or generates, persists and hydrates a new world
// when the repository holds no chunks. Any other chunk count is ErrWorldMismatch and
// nothing is touched; resetting a save is the caller's explicit decision (ClearAll)
func OpenWorld(repo *BoltRepository, store *world.Store, seed int64, gen Generator, log logrus.FieldLogger) (WorldInfo, error) {
	log = log.WithField("component", "loader")
	layout := store.Layout()

	records, err := repo.LoadChunks()
	if err != nil {
		return WorldInfo{}, err
	}

	if len(records) == layout.TotalChunks {
		if err := store.BulkLoad(records); err != nil {
			return WorldInfo{}, fmt.Errorf("hydrate world: %w", err)
		}
		info := WorldInfo{Chunks: len(records)}
		if _, err := repo.GameState(GameStateWorldID, &info.ID); err != nil {
			return WorldInfo{}, err
		}
		if _, err := repo.GameState(GameStateSeed, &info.Seed); err != nil {
			return WorldInfo{}, err
		}
		log.WithFields(logrus.Fields{"world_id": info.ID, "chunks": info.Chunks}).Info("world loaded")
		return info, nil
	}

	if len(records) > 0 {
		return WorldInfo{}, fmt.Errorf("world has %d chunks, layout wants %d: %w",
			len(records), layout.TotalChunks, ErrWorldMismatch)
	}

	start := time.Now()
	records, err = world.RecordsFromTiles(layout, gen(layout, seed))
	if err != nil {
		return WorldInfo{}, fmt.Errorf("generate world: %w", err)
	}

	info := WorldInfo{ID: uuid.NewString(), Seed: seed, Generated: true, Chunks: len(records)}
	batch := Batch{Chunks: records}
	for key, value := range map[string]any{
		GameStateWorldID: info.ID,
		GameStateSeed:    seed,
		GameStateCreated: time.Now().UTC().Format(time.RFC3339),
	} {
		u, err := GameStateUpdate(key, value)
		if err != nil {
			return WorldInfo{}, err
		}
		batch.Static = append(batch.Static, u)
	}

	res, err := repo.Apply(batch)
	if err != nil {
		return WorldInfo{}, fmt.Errorf("persist new world: %w", err)
	}
	for i := range records {
		records[i].Key = res.ChunkKeys[records[i].Index]
	}
	if err := store.BulkLoad(records); err != nil {
		return WorldInfo{}, fmt.Errorf("hydrate new world: %w", err)
	}

	log.WithFields(logrus.Fields{
		"world_id": info.ID,
		"seed":     seed,
		"elapsed":  time.Since(start),
	}).Info("world generated")
	return info, nil
}
