package snapshot

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/termdoc/core/content"
	"github.com/FocuswithJustin/termdoc/core/errors"
)

const sampleMarkup = `<div>See <span data-content-type="tagged-term" data-content-id="g-1">lemma</span></div>` +
	`<div><ul><li>Item 1<ul><li>Nested</li></ul></li></ul></div>`

// rawArchive builds a gzip tar from name/data pairs.
func rawArchive(t *testing.T, entries ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for i := 0; i+1 < len(entries); i += 2 {
		if err := writeToTar(tw, entries[i], []byte(entries[i+1])); err != nil {
			t.Fatalf("writeToTar: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func manifestJSON(t *testing.T, markup string) string {
	t.Helper()
	data, err := NewManifest(markup, nil).ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// TestNewCanonicalizes verifies that snapshots hold canonical markup.
func TestNewCanonicalizes(t *testing.T) {
	s := New("<p>Hello &amp; bye</p>")
	if s.Markup != "<div>Hello & bye</div>" {
		t.Errorf("Markup = %q", s.Markup)
	}
	if !s.Manifest.Hashes.Verify(s.Markup) {
		t.Error("manifest hashes should match the canonical markup")
	}
	if s.Manifest.Blocks != 1 {
		t.Errorf("Blocks = %d, want 1", s.Manifest.Blocks)
	}
}

// TestManifestTerms verifies term IDs are listed once each in order.
func TestManifestTerms(t *testing.T) {
	s := New(`<div><span data-content-type="tagged-term" data-content-id="b">x</span>` +
		`<span data-content-type="tagged-term" data-content-id="a">y</span>` +
		`<span data-content-type="tagged-term" data-content-id="b">z</span></div>`)
	want := []string{"b", "a"}
	if fmt.Sprint(s.Manifest.Terms) != fmt.Sprint(want) {
		t.Errorf("Terms = %v, want %v", s.Manifest.Terms, want)
	}
}

// TestPackUnpackRoundTrip verifies both compression formats round trip.
func TestPackUnpackRoundTrip(t *testing.T) {
	for _, compression := range []CompressionType{CompressionXZ, CompressionGzip} {
		t.Run(string(compression), func(t *testing.T) {
			s := New(sampleMarkup)
			var buf bytes.Buffer
			if err := Pack(&buf, s, &PackOptions{Compression: compression}); err != nil {
				t.Fatalf("Pack: %v", err)
			}

			got, err := Unpack(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("Unpack: %v", err)
			}
			if got.Markup != sampleMarkup {
				t.Errorf("Markup = %q, want %q", got.Markup, sampleMarkup)
			}
			if !content.Equal(got.Tree, s.Tree) {
				t.Error("tree changed across pack/unpack")
			}
			if got.Manifest.Compression != compression {
				t.Errorf("Compression = %q, want %q", got.Manifest.Compression, compression)
			}
			if got.Manifest.Hashes != s.Manifest.Hashes {
				t.Errorf("Hashes = %+v, want %+v", got.Manifest.Hashes, s.Manifest.Hashes)
			}
		})
	}
}

// TestPackDefaultsToXZ verifies nil options pick XZ.
func TestPackDefaultsToXZ(t *testing.T) {
	var buf bytes.Buffer
	if err := Pack(&buf, New("<div>x</div>"), nil); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}) {
		t.Errorf("archive does not start with XZ magic: % x", buf.Bytes()[:6])
	}
}

// TestPackErrors verifies invalid inputs are rejected.
func TestPackErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := Pack(&buf, nil, nil); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Pack(nil) error = %v, want ErrInvalidInput", err)
	}
	if err := Pack(&buf, New("x"), &PackOptions{Compression: "zstd"}); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("Pack(zstd) error = %v, want ErrUnsupported", err)
	}
}

// TestPackWriterFailure verifies compression setup errors propagate.
func TestPackWriterFailure(t *testing.T) {
	orig := xzNewWriter
	defer func() { xzNewWriter = orig }()
	xzNewWriter = func(io.Writer) (*xz.Writer, error) {
		return nil, fmt.Errorf("no memory")
	}

	var buf bytes.Buffer
	if err := Pack(&buf, New("x"), nil); err == nil {
		t.Error("Pack should fail when the xz writer cannot be created")
	}
}

// TestDeterministicTimestamps verifies entries use the injected clock.
func TestDeterministicTimestamps(t *testing.T) {
	orig := timeNow
	defer func() { timeNow = orig }()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	timeNow = func() time.Time { return fixed }

	data := rawArchive(t, "a.txt", "x")
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	hdr, err := tar.NewReader(gr).Next()
	if err != nil {
		t.Fatal(err)
	}
	if !hdr.ModTime.Equal(fixed) {
		t.Errorf("ModTime = %v, want %v", hdr.ModTime, fixed)
	}
}

// TestUnpackErrors verifies damaged archives are rejected.
func TestUnpackErrors(t *testing.T) {
	good := "<div>x</div>"
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty input", nil, errors.ErrInvalidInput},
		{"unknown magic", []byte("PK\x03\x04 zip data"), errors.ErrUnsupported},
		{"missing manifest", rawArchive(t, MarkupEntry, good), errors.ErrNotFound},
		{"missing markup", rawArchive(t, ManifestEntry, manifestJSON(t, good)), errors.ErrNotFound},
		{"bad manifest", rawArchive(t, ManifestEntry, "{", MarkupEntry, good), errors.ErrInvalidInput},
		{"hash mismatch", rawArchive(t, ManifestEntry, manifestJSON(t, good), MarkupEntry, "<div>y</div>"), errors.ErrInvalidInput},
		{
			"tree mismatch",
			rawArchive(t,
				ManifestEntry, manifestJSON(t, good),
				MarkupEntry, good,
				TreeEntry, `{"type":"root","children":[]}`,
			),
			errors.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unpack(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Unpack() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// TestUnpackWithoutTree verifies tree.json is optional.
func TestUnpackWithoutTree(t *testing.T) {
	good := "<div><ol><li>one</li></ol></div>"
	s, err := Unpack(bytes.NewReader(rawArchive(t,
		ManifestEntry, manifestJSON(t, good),
		"extra/notes.txt", "ignored",
		MarkupEntry, good,
	)))
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(s.Tree.Blocks) != 1 {
		t.Errorf("tree has %d blocks, want 1", len(s.Tree.Blocks))
	}
}

// TestPackFileUnpackFile verifies the file helpers.
func TestPackFileUnpackFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.tdsnap")
	s := New(sampleMarkup)
	if err := PackFile(path, s, DefaultPackOptions()); err != nil {
		t.Fatalf("PackFile: %v", err)
	}
	got, err := UnpackFile(path)
	if err != nil {
		t.Fatalf("UnpackFile: %v", err)
	}
	if got.Markup != s.Markup {
		t.Errorf("Markup = %q, want %q", got.Markup, s.Markup)
	}

	if _, err := UnpackFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("UnpackFile should fail for a missing file")
	}
	if err := PackFile(filepath.Join(t.TempDir(), "no", "such", "dir", "x"), s, nil); err == nil {
		t.Error("PackFile should fail when the directory does not exist")
	}
}
