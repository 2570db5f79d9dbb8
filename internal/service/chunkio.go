package service

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/helioscope-ai/helioscope/internal/domain"
)

// chunkScanBufferSize accommodates full-text chunks plus a 384-float
// embedding on a single NDJSON line.
const chunkScanBufferSize = 1 << 20

// WriteEmbeddedChunks streams chunks to w as NDJSON, one chunk per line.
func WriteEmbeddedChunks(w io.Writer, chunks []domain.EmbeddedChunk) error {
	enc := json.NewEncoder(w)
	for i := range chunks {
		if err := enc.Encode(&chunks[i]); err != nil {
			return fmt.Errorf("failed to encode chunk %s: %w", chunks[i].ChunkID, err)
		}
	}
	return nil
}

// ReadEmbeddedChunks parses NDJSON chunks from r. Blank lines are skipped.
// A malformed line is logged with its line number and skipped so one bad
// record does not discard the rest of the file.
func ReadEmbeddedChunks(r io.Reader) ([]domain.EmbeddedChunk, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), chunkScanBufferSize)

	var chunks []domain.EmbeddedChunk
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var c domain.EmbeddedChunk
		if err := json.Unmarshal(raw, &c); err != nil {
			log.Printf("chunks: skipping malformed line %d: %v", line, err)
			continue
		}
		if c.ChunkID == "" {
			log.Printf("chunks: skipping line %d: missing chunk_id", line)
			continue
		}
		chunks = append(chunks, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}
	return chunks, nil
}

// WriteEmbeddedChunksFile writes chunks to path via a temp file and rename.
func WriteEmbeddedChunksFile(path string, chunks []domain.EmbeddedChunk) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".chunks-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteEmbeddedChunks(tmp, chunks); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move chunks file: %w", err)
	}
	return nil
}

// ReadEmbeddedChunksFile reads an NDJSON chunks file from disk.
func ReadEmbeddedChunksFile(path string) ([]domain.EmbeddedChunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunks file: %w", err)
	}
	defer f.Close()
	return ReadEmbeddedChunks(f)
}
