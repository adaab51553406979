// Package chunker implements the optional pre-partitioning of a stage's
// source listing into fixed-count batches (C4), each materialized as an
// engine-readable file-list artifact.
package chunker

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Batch is one ordered subset of the source listing, materialized on disk
// at Path.
type Batch struct {
	Path  string
	Names []string
}

// Chunker partitions a file listing into batches and writes each as a
// newline-delimited file-list artifact the engine reads via its
// file-list flag.
type Chunker struct {
	dir        string // directory holding chunk artifacts
	chunkCount int
	sessionID  string
}

// New creates a chunker that writes artifacts under dir, splitting a
// listing into ordered batches of at most chunkCount names each (the
// configured chunk_size).
func New(dir string, chunkCount int) *Chunker {
	if chunkCount <= 0 {
		chunkCount = 1
	}
	return &Chunker{dir: dir, chunkCount: chunkCount, sessionID: uuid.NewString()}
}

// Plan partitions names (in listing order) into ceil(N/chunkCount) batches
// of at most chunkCount names each: chunkCount is the batch size, not the
// number of batches. Each source file appears in exactly one batch; batch
// order matches the input order.
func (c *Chunker) Plan(names []string) []Batch {
	if len(names) == 0 {
		return nil
	}
	var batches []Batch
	for start := 0; start < len(names); start += c.chunkCount {
		end := start + c.chunkCount
		if end > len(names) {
			end = len(names)
		}
		batches = append(batches, Batch{Names: append([]string(nil), names[start:end]...)})
	}
	return batches
}

// Materialize writes each batch's names to a uniquely-named artifact file
// under the chunker's directory, filling in each Batch's Path.
func (c *Chunker) Materialize(batches []Batch) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create chunk directory: %w", err)
	}
	for i := range batches {
		path := filepath.Join(c.dir, fmt.Sprintf("chunk-%s-%04d.lst", c.sessionID, i))
		if err := writeList(path, batches[i].Names); err != nil {
			return fmt.Errorf("materialize chunk %d: %w", i, err)
		}
		batches[i].Path = path
	}
	return nil
}

func writeList(path string, names []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, name := range names {
		if _, err := w.WriteString(name + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Cleanup removes a single batch's artifact. It is called on stage exit —
// success, failure, or abort — so artifacts never outlive their stage.
func Cleanup(batch Batch) error {
	if batch.Path == "" {
		return nil
	}
	if err := os.Remove(batch.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove chunk artifact %s: %w", batch.Path, err)
	}
	return nil
}

// SweepStale removes any leftover chunk artifacts from a previous crashed
// run, found under dir at startup before the first stage begins.
func SweepStale(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read chunk directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) == ".lst" {
			if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove stale chunk artifact %s: %w", name, err)
			}
		}
	}
	return nil
}
