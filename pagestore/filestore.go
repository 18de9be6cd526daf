// Copyright 2025 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package pagestore

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/golang/snappy"

	"github.com/dotlanth/dotdb/common"
	"github.com/dotlanth/dotdb/log"
)

// indexEntry records where a key's bytes live in the append-only data file.
type indexEntry struct {
	Offset int64 `json:"offset"`
	Length int   `json:"length"`
}

// FileConfig parameterizes the file-backed store.
type FileConfig struct {
	Dir               string
	CacheSize         int
	EnableCompression bool
}

func DefaultFileConfig(dir string) FileConfig {
	return FileConfig{Dir: dir, CacheSize: 10000, EnableCompression: true}
}

// FileStore is the append-file + JSON-index backing described in §6: two
// sibling files, an append-only data file and an index file serializing
// {hex(key) -> (offset, length)} as JSON, rewritten via create+truncate+fsync
// after every mutation. Crash semantics: the latest fsynced index wins, and
// any data bytes written after it but before a crash are orphaned garbage —
// the cheaper of the two crash-semantics choices §9 leaves open.
type FileStore struct {
	mu sync.Mutex

	cfg       FileConfig
	dataPath  string
	indexPath string
	dataFile  *os.File

	index  map[string]indexEntry
	cache  *lru.Cache
	stats  Stats
	closed bool
}

func OpenFileStore(cfg FileConfig) (*FileStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	dataPath := filepath.Join(cfg.Dir, "data.db")
	indexPath := filepath.Join(cfg.Dir, "index.db")

	df, err := os.OpenFile(dataPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 10000
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		df.Close()
		return nil, err
	}

	fs := &FileStore{
		cfg:       cfg,
		dataPath:  dataPath,
		indexPath: indexPath,
		dataFile:  df,
		index:     make(map[string]indexEntry),
		cache:     cache,
	}
	if err := fs.loadIndex(); err != nil {
		df.Close()
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) loadIndex() error {
	raw, err := ioutil.ReadFile(fs.indexPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	var onDisk map[string]indexEntry
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		log.Warn("pagestore: discarding corrupt index, treating as empty", "err", err)
		return nil
	}
	fs.index = onDisk
	return nil
}

// persistIndex rewrites the index file via create+truncate+fsync, per §6.
func (fs *FileStore) persistIndex() error {
	raw, err := json.Marshal(fs.index)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(fs.indexPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(raw); err != nil {
		return err
	}
	return f.Sync()
}

func (fs *FileStore) Get(key []byte) ([]byte, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return nil, false, ErrClosed
	}
	fs.stats.Gets++

	k := hex.EncodeToString(key)
	if v, ok := fs.cache.Get(k); ok {
		fs.stats.CacheHits++
		return common.CopyBytes(v.([]byte)), true, nil
	}
	fs.stats.CacheMisses++

	entry, ok := fs.index[k]
	if !ok {
		return nil, false, nil
	}
	buf := make([]byte, entry.Length)
	if _, err := fs.dataFile.ReadAt(buf, entry.Offset); err != nil {
		return nil, false, fmt.Errorf("pagestore: read: %w", err)
	}
	if fs.cfg.EnableCompression {
		decoded, err := snappy.Decode(nil, buf)
		if err != nil {
			return nil, false, fmt.Errorf("pagestore: decompress: %w", err)
		}
		buf = decoded
	}
	fs.cache.Add(k, common.CopyBytes(buf))
	return buf, true, nil
}

func (fs *FileStore) Put(key, value []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return ErrClosed
	}
	payload := value
	if fs.cfg.EnableCompression {
		payload = snappy.Encode(nil, value)
	}
	off, err := fs.dataFile.Seek(0, os.SEEK_END)
	if err != nil {
		return err
	}
	if _, err := fs.dataFile.Write(payload); err != nil {
		return err
	}
	k := hex.EncodeToString(key)
	fs.index[k] = indexEntry{Offset: off, Length: len(payload)}
	fs.cache.Add(k, common.CopyBytes(value))
	fs.stats.Puts++
	return fs.persistIndex()
}

func (fs *FileStore) Delete(key []byte) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return false, ErrClosed
	}
	k := hex.EncodeToString(key)
	_, ok := fs.index[k]
	delete(fs.index, k)
	fs.cache.Remove(k)
	fs.stats.Deletes++
	if err := fs.persistIndex(); err != nil {
		return ok, err
	}
	return ok, nil
}

func (fs *FileStore) Contains(key []byte) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return false, ErrClosed
	}
	_, ok := fs.index[hex.EncodeToString(key)]
	return ok, nil
}

// Batch applies operations in order, each individually durable on return —
// the best-effort (non-atomic) contract §4.2/§9 permits.
func (fs *FileStore) Batch(ops []Op) error {
	for _, op := range ops {
		switch op.Kind {
		case OpPut:
			if err := fs.Put(op.Key, op.Value); err != nil {
				return err
			}
		case OpDelete:
			if _, err := fs.Delete(op.Key); err != nil {
				return err
			}
		}
	}
	return nil
}

func (fs *FileStore) Snapshot() (*Snapshot, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	data := make(map[string][]byte, len(fs.index))
	for k := range fs.index {
		raw, err := hex.DecodeString(k)
		if err != nil {
			continue
		}
		v, ok, err := fs.getLocked(raw)
		if err != nil || !ok {
			continue
		}
		data[string(raw)] = v
	}
	return &Snapshot{Version: nextVersionId(), data: data}, nil
}

// getLocked is Get without re-acquiring fs.mu, for use under Snapshot.
func (fs *FileStore) getLocked(key []byte) ([]byte, bool, error) {
	k := hex.EncodeToString(key)
	entry, ok := fs.index[k]
	if !ok {
		return nil, false, nil
	}
	buf := make([]byte, entry.Length)
	if _, err := fs.dataFile.ReadAt(buf, entry.Offset); err != nil {
		return nil, false, err
	}
	if fs.cfg.EnableCompression {
		decoded, err := snappy.Decode(nil, buf)
		if err != nil {
			return nil, false, err
		}
		buf = decoded
	}
	return buf, true, nil
}

func (fs *FileStore) Flush() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.dataFile.Sync()
}

func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return nil
	}
	fs.closed = true
	return fs.dataFile.Close()
}

func (fs *FileStore) Stats() Stats {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.stats
}
