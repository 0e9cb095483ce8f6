package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Kind distinguishes table backups from whole-store snapshots.
type Kind string

const (
	KindTable Kind = "table"
	KindStore Kind = "store"
)

// StoreTarget is the Target of every store snapshot.
const StoreTarget = "_store"

// Artifact describes one backup file.
type Artifact struct {
	ID        string    `json:"id" yaml:"id"`
	Kind      Kind      `json:"kind" yaml:"kind"`
	Target    string    `json:"target" yaml:"target"` // table name, or StoreTarget
	File      string    `json:"file" yaml:"file"`     // relative to the backup directory
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Hash      string    `json:"hash" yaml:"hash"` // SHA256 of the file
	Size      int64     `json:"size" yaml:"size"`
	Rows      int       `json:"rows,omitempty" yaml:"rows,omitempty"`
	Mirrored  bool      `json:"mirrored,omitempty" yaml:"mirrored,omitempty"`
}

// Index maintains an index of all backups.
type Index struct {
	Version   string              `json:"version"`
	Updated   time.Time           `json:"updated"`
	Artifacts map[string]Artifact `json:"artifacts"` // Key: artifact ID
}

const (
	// IndexVersion is the current version of the backup index format
	IndexVersion = "1.0"
	// IndexFilename is the name of the index file
	IndexFilename = "index.json"
)

func loadIndex(dir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFilename))
	if os.IsNotExist(err) {
		return &Index{Version: IndexVersion, Artifacts: make(map[string]Artifact)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index file: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse index file: %w", err)
	}
	if idx.Artifacts == nil {
		idx.Artifacts = make(map[string]Artifact)
	}
	return &idx, nil
}

// save writes the index through a temporary file so a crash never leaves
// a truncated index behind.
func (idx *Index) save(dir string, now time.Time) error {
	idx.Updated = now
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	tmp := filepath.Join(dir, IndexFilename+".tmp")
	if err := os.WriteFile(tmp, data, FilePerm); err != nil {
		return fmt.Errorf("write index file: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, IndexFilename)); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

// sorted returns the artifacts matching keep, newest first.
func (idx *Index) sorted(keep func(Artifact) bool) []Artifact {
	out := make([]Artifact, 0, len(idx.Artifacts))
	for _, a := range idx.Artifacts {
		if keep == nil || keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
