package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	terrors "github.com/FocuswithJustin/termdoc/core/errors"
)

func sampleRoot() *Root {
	return &Root{Blocks: []Block{
		Paragraph(Text("Hello <b>world</b> "), Term("g-1", "lemma")),
		Bullets(
			NewItem("Item 1", Numbered(NewItem("Nested 1.1"), NewItem("Nested 1.2"))),
			NewItem(""),
		),
	}}
}

func TestRootJSONShape(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleRoot()); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got := buf.String()

	wants := []string{
		`{"type":"root","children":[`,
		`{"type":"inline","content":[{"type":"text","value":"Hello <b>world</b> "},{"type":"tagged-term","id":"g-1","value":"lemma"}]}`,
		`{"type":"unordered-list","items":[`,
		`{"type":"ordered-list","items":[`,
		`{"type":"list-item","content":{"type":"inline","content":[]}}`,
	}
	for _, want := range wants {
		if !strings.Contains(got, want) {
			t.Errorf("JSON missing %s\ngot: %s", want, got)
		}
	}
}

func TestRootJSONDecode(t *testing.T) {
	want := sampleRoot()
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("decoded tree mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeHandWritten(t *testing.T) {
	src := `{"type":"root","children":[
		{"type":"ordered-list","items":[
			{"type":"list-item","content":{"type":"inline","content":[{"type":"text","value":"First"}]}}
		]}
	]}`
	got, err := Decode([]byte(src))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := &Root{Blocks: []Block{Numbered(NewItem("First"))}}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeMergesTextRuns(t *testing.T) {
	src := `{"type":"root","children":[{"type":"inline","content":[
		{"type":"text","value":"a"},{"type":"text","value":""},{"type":"text","value":"b"},
		{"type":"tagged-term","id":"t1","value":"x"}]}]}`
	got, err := Decode([]byte(src))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := &Root{Blocks: []Block{Paragraph(Text("ab"), Term("t1", "x"))}}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if errs := Validate(got); len(errs) != 0 {
		t.Errorf("Validate(decoded) = %v, want none", errs)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"not json", `{`},
		{"wrong root type", `{"type":"inline","children":[]}`},
		{"unknown block", `{"type":"root","children":[{"type":"table"}]}`},
		{"unknown run", `{"type":"root","children":[{"type":"inline","content":[{"type":"link","value":"x"}]}]}`},
		{"bad item", `{"type":"root","children":[{"type":"unordered-list","items":[{"type":"inline"}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.src))
			if err == nil {
				t.Fatal("Decode succeeded, want error")
			}
			var pe *terrors.ParseError
			if !errors.As(err, &pe) {
				t.Errorf("error %v is not a ParseError", err)
			}
		})
	}
}
