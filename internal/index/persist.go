package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	snapshotMagic   = "HVIX"
	snapshotVersion = uint32(1)

	kindFlat = uint8(0)
	kindHNSW = uint8(1)
)

// Save writes the flat index to a binary vector file plus an NDJSON
// metadata file.
func (f *Flat) Save(indexPath, metaPath string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.vectors) == 0 {
		return ErrNotInitialized
	}
	return writeSnapshot(indexPath, metaPath, kindFlat, f.dim, HNSWConfig{}, f.vectors, f.metas)
}

// Save writes the HNSW index to a binary vector file plus an NDJSON
// metadata file. The graph is rebuilt on load from the stored vectors.
func (h *HNSW) Save(indexPath, metaPath string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.entry < 0 {
		return ErrNotInitialized
	}
	return writeSnapshot(indexPath, metaPath, kindHNSW, h.dim, h.cfg, h.vectors, h.metas)
}

// Load reads a snapshot written by Save and reconstructs the index. The
// metadata file must carry exactly one record per stored vector.
func Load(indexPath, metaPath string) (VectorIndex, error) {
	kind, dim, cfg, vectors, err := readVectors(indexPath)
	if err != nil {
		return nil, err
	}

	metas, err := readMetadata(metaPath)
	if err != nil {
		return nil, err
	}
	if len(metas) != len(vectors) {
		return nil, fmt.Errorf("%w: %d vectors, %d metadata records", ErrMetadataSkew, len(vectors), len(metas))
	}

	switch kind {
	case kindFlat:
		idx := NewFlat(dim)
		if err := idx.Add(vectors, metas); err != nil {
			return nil, err
		}
		return idx, nil
	case kindHNSW:
		idx := NewHNSW(dim, cfg)
		if err := idx.Add(vectors, metas); err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index kind %d", kind)
	}
}

func writeSnapshot(indexPath, metaPath string, kind uint8, dim int, cfg HNSWConfig, vectors [][]float32, metas []Metadata) error {
	if err := writeVectors(indexPath, kind, dim, cfg, vectors); err != nil {
		return err
	}
	return writeMetadata(metaPath, metas)
}

func writeVectors(path string, kind uint8, dim int, cfg HNSWConfig, vectors [][]float32) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(snapshotMagic); err != nil {
		return err
	}
	header := []uint32{snapshotVersion, uint32(kind), uint32(dim), uint32(len(vectors)),
		uint32(cfg.M), uint32(cfg.EfConstruction), uint32(cfg.EfSearch)}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, vec := range vectors {
		if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readVectors(path string) (kind uint8, dim int, cfg HNSWConfig, vectors [][]float32, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, cfg, nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return 0, 0, cfg, nil, fmt.Errorf("read index header: %w", err)
	}
	if string(magic) != snapshotMagic {
		return 0, 0, cfg, nil, fmt.Errorf("not an index snapshot: %q", magic)
	}

	var header [7]uint32
	for i := range header {
		if err := binary.Read(r, binary.LittleEndian, &header[i]); err != nil {
			return 0, 0, cfg, nil, fmt.Errorf("read index header: %w", err)
		}
	}
	if header[0] != snapshotVersion {
		return 0, 0, cfg, nil, fmt.Errorf("unsupported snapshot version %d", header[0])
	}
	kind = uint8(header[1])
	dim = int(header[2])
	count := int(header[3])
	cfg = HNSWConfig{M: int(header[4]), EfConstruction: int(header[5]), EfSearch: int(header[6])}

	vectors = make([][]float32, count)
	for i := range vectors {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return 0, 0, cfg, nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return kind, dim, cfg, vectors, nil
}

func writeMetadata(path string, metas []Metadata) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range metas {
		if err := enc.Encode(&metas[i]); err != nil {
			return fmt.Errorf("encode metadata record %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readMetadata(path string) ([]Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata file: %w", err)
	}
	defer f.Close()

	var metas []Metadata
	dec := json.NewDecoder(bufio.NewReader(f))
	for {
		var m Metadata
		if err := dec.Decode(&m); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("decode metadata record %d: %w", len(metas), err)
		}
		metas = append(metas, m)
	}
	return metas, nil
}

// SnapshotPaths derives the metadata path next to an index path when only
// one is configured.
func SnapshotPaths(indexPath string) (string, string) {
	dir := filepath.Dir(indexPath)
	base := filepath.Base(indexPath)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	return indexPath, filepath.Join(dir, stem+"_metadata.jsonl")
}
