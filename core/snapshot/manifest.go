// Package snapshot packs a document into a portable, verifiable archive.
//
// A snapshot is a compressed tar holding three entries:
//
//	manifest.json  version, hashes, creation time and summary counts
//	document.html  the canonical markup
//	tree.json      the content tree
//
// The markup is authoritative; tree.json is a convenience for consumers
// that do not want to parse markup, and Unpack checks that the two agree.
package snapshot

import (
	"encoding/json"
	"time"

	"github.com/FocuswithJustin/termdoc/core/content"
)

// Version is the current snapshot format version.
const Version = "1.0.0"

// Entry names inside the archive.
const (
	ManifestEntry = "manifest.json"
	MarkupEntry   = "document.html"
	TreeEntry     = "tree.json"
)

// Manifest describes a snapshot (manifest.json).
type Manifest struct {
	SnapshotVersion string             `json:"snapshot_version"`
	CreatedAt       string             `json:"created_at"`
	Tool            ToolInfo           `json:"tool"`
	Title           string             `json:"title,omitempty"`
	DocumentID      string             `json:"document_id,omitempty"`
	Revision        int                `json:"revision,omitempty"`
	Compression     CompressionType    `json:"compression"`
	Hashes          content.HashResult `json:"hashes"`
	SizeBytes       int64              `json:"size_bytes"`
	Blocks          int                `json:"blocks"`
	Terms           []string           `json:"terms,omitempty"`
}

// ToolInfo describes the tool that wrote the snapshot.
type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NewManifest creates a manifest for canonical markup.
func NewManifest(canonical string, tree *content.Root) *Manifest {
	m := &Manifest{
		SnapshotVersion: Version,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
		Tool: ToolInfo{
			Name:    "termdoc",
			Version: Version,
		},
		Hashes:    content.Hash(canonical),
		SizeBytes: int64(len(canonical)),
	}
	if tree != nil {
		m.Blocks = len(tree.Blocks)
		seen := make(map[string]bool)
		for _, term := range content.Terms(tree) {
			if !seen[term.ID] {
				seen[term.ID] = true
				m.Terms = append(m.Terms, term.ID)
			}
		}
	}
	return m
}

// ToJSON serializes the manifest to JSON.
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ParseManifest parses a manifest from JSON.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
