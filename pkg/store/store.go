// Package store persists refinement output: voxel grids as NumPy .npy
// files and per-generation results in a badger key-value store.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chazu/amgen/pkg/logging"
	"github.com/chazu/amgen/pkg/voxel"
	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

// ErrNotFound is returned when no record exists for a generation.
var ErrNotFound = errors.New("store: generation not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Record is the persisted outcome of refining one generation.
type Record struct {
	Index         int       `json:"index"`
	Name          string    `json:"name"`
	Resolution    float64   `json:"resolution"`
	PartVoxels    int       `json:"part_voxels"`
	PartVolume    float64   `json:"part_volume"`
	SupportVoxels int       `json:"support_voxels"`
	SupportVolume float64   `json:"support_volume"`
	SupportRatio  float64   `json:"support_ratio"`
	HasSupport    bool      `json:"has_support"`
	Error         string    `json:"error,omitempty"`
	Elapsed       float64   `json:"elapsed_seconds"`
	CreatedAt     time.Time `json:"created_at"`
}

// Failed reports whether the generation produced no result.
func (r Record) Failed() bool {
	return r.Error != ""
}

// ResultStore keeps Records and their grids in badger. Grids are stored
// zstd-compressed, one byte per cell in layer-major order, behind a
// 12-byte little-endian (W, D, H) header.
type ResultStore struct {
	db  *badger.DB
	enc *zstd.Encoder
	dec *zstd.Decoder

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) a store rooted at dir. An empty dir opens an
// in-memory store.
func Open(dir string) (*ResultStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(logging.BadgerAdapter{})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("store: zstd decoder: %w", err)
	}

	logging.Logger().Debug("result store opened", "dir", dir, "in_memory", dir == "")
	return &ResultStore{db: db, enc: enc, dec: dec}, nil
}

// Close releases the store. Closing twice is a no-op.
func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.dec.Close()
	s.enc.Close()
	return s.db.Close()
}

const genPrefix = "gen/"

func genKey(index int) string {
	return fmt.Sprintf("%s%06d/", genPrefix, index)
}

func resultKey(index int) []byte  { return []byte(genKey(index) + "result") }
func partKey(index int) []byte    { return []byte(genKey(index) + "part") }
func supportKey(index int) []byte { return []byte(genKey(index) + "support") }

// Put stores rec and its grids in one transaction, replacing any earlier
// record for the same generation. Nil grids remove stale ones.
func (s *ResultStore) Put(rec Record, part, support *voxel.Grid) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(resultKey(rec.Index), data); err != nil {
			return err
		}
		for _, g := range []struct {
			key  []byte
			grid *voxel.Grid
		}{
			{partKey(rec.Index), part},
			{supportKey(rec.Index), support},
		} {
			if g.grid == nil {
				if err := txn.Delete(g.key); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set(g.key, s.encodeGrid(g.grid)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: put generation %d: %w", rec.Index, err)
	}
	return nil
}

// Get returns the record of generation index.
func (s *ResultStore) Get(index int) (Record, error) {
	var rec Record
	data, err := s.value(resultKey(index))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("store: decode record %d: %w", index, err)
	}
	return rec, nil
}

// Grids returns the stored part and support grids of generation index.
// A grid that was never stored comes back nil.
func (s *ResultStore) Grids(index int) (part, support *voxel.Grid, err error) {
	if _, err := s.Get(index); err != nil {
		return nil, nil, err
	}
	if part, err = s.grid(partKey(index)); err != nil {
		return nil, nil, err
	}
	if support, err = s.grid(supportKey(index)); err != nil {
		return nil, nil, err
	}
	return part, support, nil
}

func (s *ResultStore) grid(key []byte) (*voxel.Grid, error) {
	data, err := s.value(key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.decodeGrid(data)
}

// List returns all records ordered by generation index.
func (s *ResultStore) List() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out []Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(genPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if !strings.HasSuffix(string(item.Key()), "/result") {
				continue
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec Record
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return out, nil
}

// Delete removes generation index and its grids.
func (s *ResultStore) Delete(index int) error {
	return s.dropPrefix(genKey(index))
}

// DeleteAll removes every stored generation.
func (s *ResultStore) DeleteAll() error {
	return s.dropPrefix(genPrefix)
}

func (s *ResultStore) dropPrefix(prefix string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: scan %s: %w", prefix, err)
	}

	wb := s.db.NewWriteBatch()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			wb.Cancel()
			return fmt.Errorf("store: delete %s: %w", k, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("store: delete %s: %w", prefix, err)
	}
	logging.Logger().Debug("store entries deleted", "prefix", prefix, "keys", len(keys))
	return nil
}

func (s *ResultStore) value(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", key, err)
	}
	return data, nil
}

const gridHeaderSize = 12

func (s *ResultStore) encodeGrid(g *voxel.Grid) []byte {
	w, d, h := g.Dims()
	raw := make([]byte, gridHeaderSize+g.Len())
	binary.LittleEndian.PutUint32(raw[0:], uint32(w))
	binary.LittleEndian.PutUint32(raw[4:], uint32(d))
	binary.LittleEndian.PutUint32(raw[8:], uint32(h))
	for i, c := range g.Cells() {
		if c {
			raw[gridHeaderSize+i] = 1
		}
	}
	return s.enc.EncodeAll(raw, nil)
}

func (s *ResultStore) decodeGrid(blob []byte) (*voxel.Grid, error) {
	raw, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("store: decompress grid: %w", err)
	}
	if len(raw) < gridHeaderSize {
		return nil, fmt.Errorf("store: grid blob too short (%d bytes)", len(raw))
	}
	w := int(binary.LittleEndian.Uint32(raw[0:]))
	d := int(binary.LittleEndian.Uint32(raw[4:]))
	h := int(binary.LittleEndian.Uint32(raw[8:]))
	body := raw[gridHeaderSize:]
	cells := make([]bool, len(body))
	for i, b := range body {
		cells[i] = b != 0
	}
	g, err := voxel.GridFromCells(w, d, h, cells)
	if err != nil {
		return nil, fmt.Errorf("store: grid blob: %w", err)
	}
	return g, nil
}
