// @focus: #persist { bolt }
package persistence

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/lixenwraith/sixty-below/constant"
	"github.com/lixenwraith/sixty-below/world"
)

// Bucket names
const (
	BucketWorld     = "world_chunks"
	BucketGameState = "gamestate"
	BucketPlayer    = "player_data"
	BucketInventory = "inventory"
	BucketBuff      = "buff"
	BucketPlant     = "plant"
	BucketMonster   = "monster"
	BucketFurniture = "furniture"
)

// Buckets lists every bucket created on open
var Buckets = []string{
	BucketWorld,
	BucketGameState,
	BucketPlayer,
	BucketInventory,
	BucketBuff,
	BucketPlant,
	BucketMonster,
	BucketFurniture,
}

// ErrUnknownBucket is returned for updates naming a bucket that is not a static store
var ErrUnknownBucket = errors.New("unknown bucket")

// StaticUpdate is one pending write to a non-chunk bucket, keyed by a logical id
// Delete with Persisted false refers to a record that never reached disk
type StaticUpdate struct {
	Bucket    string
	ID        string
	Value     []byte
	Delete    bool
	Persisted bool
}

// Batch is everything written by one save pass; it commits or rolls back as a whole
type Batch struct {
	Chunks []world.PersistRecord
	Static []StaticUpdate
}

// Empty reports whether the batch has nothing to write
func (b Batch) Empty() bool {
	return len(b.Chunks) == 0 && len(b.Static) == 0
}

// Result carries keys assigned to chunks inserted for the first time
type Result struct {
	ChunkKeys map[int]world.Key
	Elapsed   time.Duration
}

// Repository is the storage the save path and world loading need
type Repository interface {
	LoadChunks() ([]world.PersistRecord, error)
	Apply(batch Batch) (Result, error)
	Close() error
}

// BoltRepository stores chunks and static records in a bbolt file
// Chunk keys come from the bucket sequence, so world.NoKey (0) is never issued
type BoltRepository struct {
	db  *bolt.DB
	log logrus.FieldLogger
}

// OpenBolt opens or creates the database at path and ensures every bucket exists
func OpenBolt(path string, log logrus.FieldLogger) (*BoltRepository, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range Buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltRepository{db: db, log: log.WithField("component", "bolt")}, nil
}

// Close releases the database file
func (r *BoltRepository) Close() error {
	return r.db.Close()
}

// Path returns the database file path
func (r *BoltRepository) Path() string {
	return r.db.Path()
}

func encodeKey(k world.Key) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(k))
	return b
}

// Chunk value layout: 4-byte big-endian chunk index then the block
func encodeChunk(rec world.PersistRecord) []byte {
	v := make([]byte, 4+len(rec.Block))
	binary.BigEndian.PutUint32(v, uint32(rec.Index))
	copy(v[4:], rec.Block)
	return v
}

func decodeChunk(k, v []byte) (world.PersistRecord, error) {
	if len(k) != 8 || len(v) != 4+constant.ChunkArea {
		return world.PersistRecord{}, fmt.Errorf("malformed chunk record: key %d bytes, value %d bytes", len(k), len(v))
	}
	return world.PersistRecord{
		Key:   world.Key(binary.BigEndian.Uint64(k)),
		Index: int(binary.BigEndian.Uint32(v)),
		Block: slices.Clone(v[4:]),
	}, nil
}

// LoadChunks reads every chunk record
func (r *BoltRepository) LoadChunks() ([]world.PersistRecord, error) {
	var out []world.PersistRecord
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketWorld))
		out = make([]world.PersistRecord, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			rec, err := decodeChunk(k, v)
			if err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	return out, nil
}

// CountChunks returns the number of stored chunk records
func (r *BoltRepository) CountChunks() (int, error) {
	n := 0
	err := r.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(BucketWorld)).Stats().KeyN
		return nil
	})
	return n, err
}

func isStaticBucket(name string) bool {
	return name != BucketWorld && slices.Contains(Buckets, name)
}

// Apply writes a batch in a single transaction
func (r *BoltRepository) Apply(batch Batch) (Result, error) {
	start := time.Now()
	res := Result{ChunkKeys: make(map[int]world.Key)}

	err := r.db.Update(func(tx *bolt.Tx) error {
		chunks := tx.Bucket([]byte(BucketWorld))
		for _, rec := range batch.Chunks {
			key := rec.Key
			if key == world.NoKey {
				seq, err := chunks.NextSequence()
				if err != nil {
					return fmt.Errorf("chunk %d sequence: %w", rec.Index, err)
				}
				key = world.Key(seq)
				res.ChunkKeys[rec.Index] = key
			}
			if err := chunks.Put(encodeKey(key), encodeChunk(rec)); err != nil {
				return fmt.Errorf("put chunk %d: %w", rec.Index, err)
			}
		}

		for _, u := range batch.Static {
			if !isStaticBucket(u.Bucket) {
				return fmt.Errorf("static update %s/%s: %w", u.Bucket, u.ID, ErrUnknownBucket)
			}
			b := tx.Bucket([]byte(u.Bucket))
			var err error
			if u.Delete {
				err = b.Delete([]byte(u.ID))
			} else {
				err = b.Put([]byte(u.ID), u.Value)
			}
			if err != nil {
				return fmt.Errorf("static update %s/%s: %w", u.Bucket, u.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	res.Elapsed = time.Since(start)
	r.log.WithFields(logrus.Fields{
		"chunks":   len(batch.Chunks),
		"inserted": len(res.ChunkKeys),
		"static":   len(batch.Static),
		"elapsed":  res.Elapsed,
	}).Debug("batch committed")
	return res, nil
}

// Get reads one static record, nil when absent
func (r *BoltRepository) Get(bucket, id string) ([]byte, error) {
	if !isStaticBucket(bucket) {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, id, ErrUnknownBucket)
	}
	var out []byte
	err := r.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(bucket)).Get([]byte(id)); v != nil {
			out = slices.Clone(v)
		}
		return nil
	})
	return out, err
}

// SetGameState stores value as JSON under key
func (r *BoltRepository) SetGameState(key string, value any) error {
	return r.BatchSetGameState(map[string]any{key: value})
}

// BatchSetGameState stores every pair in one transaction
func (r *BoltRepository) BatchSetGameState(values map[string]any) error {
	updates := make([]StaticUpdate, 0, len(values))
	for k, v := range values {
		u, err := GameStateUpdate(k, v)
		if err != nil {
			return err
		}
		updates = append(updates, u)
	}
	_, err := r.Apply(Batch{Static: updates})
	return err
}

// GameState decodes the value stored under key into out, reporting whether it exists
func (r *BoltRepository) GameState(key string, out any) (bool, error) {
	raw, err := r.Get(BucketGameState, key)
	if err != nil || raw == nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("decode gamestate %s: %w", key, err)
	}
	return true, nil
}

// AllGameState returns every gamestate value undecoded
func (r *BoltRepository) AllGameState() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketGameState)).ForEach(func(k, v []byte) error {
			out[string(k)] = slices.Clone(v)
			return nil
		})
	})
	return out, err
}

// GameStateUpdate builds the static update that stores value under key
func GameStateUpdate(key string, value any) (StaticUpdate, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return StaticUpdate{}, fmt.Errorf("encode gamestate %s: %w", key, err)
	}
	return StaticUpdate{Bucket: BucketGameState, ID: key, Value: raw}, nil
}

// ClearAll empties every bucket and resets the chunk sequence, for a new world
func (r *BoltRepository) ClearAll() error {
	return r.db.Update(func(tx *bolt.Tx) error {
		for _, name := range Buckets {
			if err := tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return fmt.Errorf("clear %s: %w", name, err)
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return fmt.Errorf("recreate %s: %w", name, err)
			}
		}
		return nil
	})
}

// backupRecord is one raw key/value; encoding/json writes the bytes as base64
type backupRecord struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

type backupFile struct {
	Sequence uint64                    `json:"sequence"`
	Buckets  map[string][]backupRecord `json:"buckets"`
}

// Backup writes every bucket as JSON
func (r *BoltRepository) Backup(w io.Writer) error {
	dump := backupFile{Buckets: make(map[string][]backupRecord, len(Buckets))}
	err := r.db.View(func(tx *bolt.Tx) error {
		for _, name := range Buckets {
			b := tx.Bucket([]byte(name))
			if name == BucketWorld {
				dump.Sequence = b.Sequence()
			}
			records := make([]backupRecord, 0, b.Stats().KeyN)
			err := b.ForEach(func(k, v []byte) error {
				records = append(records, backupRecord{Key: slices.Clone(k), Value: slices.Clone(v)})
				return nil
			})
			if err != nil {
				return err
			}
			dump.Buckets[name] = records
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if err := json.NewEncoder(w).Encode(&dump); err != nil {
		return fmt.Errorf("backup encode: %w", err)
	}
	return nil
}

// Restore replaces known buckets with the content of a Backup; unknown buckets are skipped
func (r *BoltRepository) Restore(rd io.Reader) error {
	var dump backupFile
	if err := json.NewDecoder(rd).Decode(&dump); err != nil {
		return fmt.Errorf("restore decode: %w", err)
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		for name, records := range dump.Buckets {
			if !slices.Contains(Buckets, name) {
				r.log.WithField("bucket", name).Warn("restore skipped unknown bucket")
				continue
			}
			if err := tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
			b, err := tx.CreateBucket([]byte(name))
			if err != nil {
				return err
			}
			for _, rec := range records {
				if err := b.Put(rec.Key, rec.Value); err != nil {
					return err
				}
			}
			if name == BucketWorld {
				if err := b.SetSequence(dump.Sequence); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
