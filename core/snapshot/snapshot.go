package snapshot

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/termdoc/core/content"
	"github.com/FocuswithJustin/termdoc/core/errors"
	"github.com/FocuswithJustin/termdoc/core/markup"
)

// Injectable functions for testing
var (
	gzipNewWriterLevel = gzip.NewWriterLevel
	xzNewWriter        = xz.NewWriter
	gzipNewReader      = gzip.NewReader
	xzNewReader        = xz.NewReader
	timeNow            = time.Now
)

// maxEntrySize bounds how much of a single archive entry is read.
const maxEntrySize = 64 << 20

// CompressionType specifies the compression algorithm for snapshots.
type CompressionType string

const (
	// CompressionXZ uses XZ/LZMA2 compression (default, best ratio).
	CompressionXZ CompressionType = "xz"
	// CompressionGzip uses gzip compression (stdlib, faster).
	CompressionGzip CompressionType = "gzip"
)

// PackOptions configures snapshot packing.
type PackOptions struct {
	// Compression specifies the compression algorithm. Defaults to XZ.
	Compression CompressionType
}

// DefaultPackOptions returns the default packing options (XZ compression).
func DefaultPackOptions() *PackOptions {
	return &PackOptions{
		Compression: CompressionXZ,
	}
}

// Snapshot is an unpacked snapshot.
type Snapshot struct {
	Manifest *Manifest
	Markup   string
	Tree     *content.Root
}

// New builds a snapshot of markup. The markup is canonicalized first.
func New(m string) *Snapshot {
	tree := markup.Parse(m)
	canonical := markup.Serialize(tree)
	return &Snapshot{
		Manifest: NewManifest(canonical, tree),
		Markup:   canonical,
		Tree:     tree,
	}
}

// Pack writes s to w as a compressed tar.
func Pack(w io.Writer, s *Snapshot, opts *PackOptions) error {
	if opts == nil {
		opts = DefaultPackOptions()
	}
	if s == nil || s.Manifest == nil {
		return errors.NewValidation("snapshot", "missing manifest")
	}

	var compressWriter io.WriteCloser
	var err error
	switch opts.Compression {
	case CompressionGzip:
		compressWriter, err = gzipNewWriterLevel(w, gzip.BestCompression)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
	case CompressionXZ, "":
		compressWriter, err = xzNewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create xz writer: %w", err)
		}
	default:
		return errors.NewUnsupported("compression", string(opts.Compression))
	}

	manifest := *s.Manifest
	manifest.Compression = opts.Compression
	if manifest.Compression == "" {
		manifest.Compression = CompressionXZ
	}
	manifestData, err := manifest.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}

	var treeData bytes.Buffer
	if err := content.EncodeIndent(&treeData, s.Tree); err != nil {
		return fmt.Errorf("failed to serialize tree: %w", err)
	}

	tw := tar.NewWriter(compressWriter)
	entries := []struct {
		name string
		data []byte
	}{
		{ManifestEntry, manifestData},
		{MarkupEntry, []byte(s.Markup)},
		{TreeEntry, treeData.Bytes()},
	}
	for _, e := range entries {
		if err := writeToTar(tw, e.name, e.data); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := compressWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish compression: %w", err)
	}
	return nil
}

// PackFile writes s to a file.
func PackFile(path string, s *Snapshot, opts *PackOptions) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.NewIO("create", path, err)
	}
	if err := Pack(file, s, opts); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return errors.NewIO("close", path, err)
	}
	return nil
}

// DetectCompression peeks at the magic bytes of r without consuming them.
func DetectCompression(r *bufio.Reader) (CompressionType, error) {
	magic, err := r.Peek(6)
	if err != nil && len(magic) < 2 {
		return "", errors.NewValidation("archive", "too small to detect compression")
	}

	// gzip magic (1f 8b)
	if magic[0] == 0x1f && magic[1] == 0x8b {
		return CompressionGzip, nil
	}

	// XZ magic (fd 37 7a 58 5a 00)
	if len(magic) >= 6 && bytes.Equal(magic, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}) {
		return CompressionXZ, nil
	}

	return "", errors.NewUnsupported("compression format", "unknown magic bytes")
}

// Unpack reads a snapshot. Compression is detected automatically. The
// markup must match the manifest hashes and the tree must match the markup.
func Unpack(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReader(r)
	compression, err := DetectCompression(br)
	if err != nil {
		return nil, fmt.Errorf("failed to detect compression: %w", err)
	}

	var decompressReader io.Reader
	switch compression {
	case CompressionGzip:
		gzReader, err := gzipNewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		decompressReader = gzReader
	case CompressionXZ:
		xzReader, err := xzNewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		decompressReader = xzReader
	}

	files := make(map[string][]byte)
	tarReader := tar.NewReader(decompressReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		switch header.Name {
		case ManifestEntry, MarkupEntry, TreeEntry:
		default:
			continue
		}
		data, err := io.ReadAll(io.LimitReader(tarReader, maxEntrySize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		if len(data) > maxEntrySize {
			return nil, errors.NewValidation(header.Name, "entry too large")
		}
		files[header.Name] = data
	}

	for _, name := range []string{ManifestEntry, MarkupEntry} {
		if _, ok := files[name]; !ok {
			return nil, errors.NewNotFound("archive entry", name)
		}
	}

	manifest, err := ParseManifest(files[ManifestEntry])
	if err != nil {
		return nil, errors.NewParse("manifest", ManifestEntry, err.Error())
	}
	doc := string(files[MarkupEntry])
	if !manifest.Hashes.Verify(doc) {
		return nil, errors.NewValidation(MarkupEntry, "hash mismatch")
	}

	tree := markup.Parse(doc)
	if data, ok := files[TreeEntry]; ok {
		stored, err := content.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", TreeEntry, err)
		}
		if !content.Equal(stored, tree) {
			return nil, errors.NewValidation(TreeEntry, "tree does not match markup")
		}
	}

	return &Snapshot{Manifest: manifest, Markup: doc, Tree: tree}, nil
}

// UnpackFile reads a snapshot from a file.
func UnpackFile(path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer file.Close()
	return Unpack(file)
}

// writeToTar writes a file to the tar archive.
func writeToTar(tw *tar.Writer, name string, data []byte) error {
	header := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    int64(len(data)),
		ModTime: timeNow().UTC().Truncate(time.Second),
	}

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	_, err := tw.Write(data)
	return err
}
