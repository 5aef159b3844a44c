package content

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateClean(t *testing.T) {
	if errs := Validate(sampleRoot()); len(errs) != 0 {
		t.Errorf("Validate(sample) = %v, want none", errs)
	}
}

func TestValidateFindings(t *testing.T) {
	deep := Bullets(NewItem("0", Bullets(NewItem("1", Bullets(NewItem("2", Bullets(NewItem("3"))))))))
	root := &Root{Blocks: []Block{
		&Inline{Runs: []Run{Text("a"), Text("b")}},
		&Inline{Runs: []Run{Term("", "orphan")}},
		&List{},
		deep,
		nil,
	}}

	errs := Validate(root)
	wantPaths := []string{
		"blocks[0].runs[1]: adjacent text runs",
		"blocks[1].runs[0]: tagged term without id",
		"blocks[2]: empty list",
		"nesting depth 3 exceeds 2",
		"blocks[4]: nil block",
	}
	var msgs []string
	for _, err := range errs {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("error %v is not a ValidationError", err)
		}
		msgs = append(msgs, err.Error())
	}
	joined := strings.Join(msgs, "\n")
	for _, want := range wantPaths {
		if !strings.Contains(joined, want) {
			t.Errorf("missing finding %q in:\n%s", want, joined)
		}
	}
}

func TestValidateStructural(t *testing.T) {
	deep := Bullets(NewItem("0", Bullets(NewItem("1", Bullets(NewItem("2", Bullets(NewItem("3"))))))))
	legal := &Root{Blocks: []Block{
		&Inline{Runs: []Run{Text("a"), Text("b")}},
		&List{},
		deep,
	}}
	if errs := Validate(legal); len(errs) != 3 {
		t.Errorf("Validate(legal) = %v, want 3 findings", errs)
	}
	if errs := Structural(Validate(legal)); len(errs) != 0 {
		t.Errorf("Structural(legal) = %v, want none", errs)
	}

	broken := &Root{Blocks: []Block{
		&Inline{Runs: []Run{Term("", "orphan")}},
		&List{Items: []*Item{nil}},
		&List{Items: []*Item{{Children: []*List{nil}}}},
		nil,
	}}
	errs := Structural(Validate(broken))
	if len(errs) != 4 {
		t.Fatalf("Structural(broken) = %v, want 4 findings", errs)
	}
	if !strings.Contains(errs[2].Error(), "children[0]: nil list") {
		t.Errorf("finding = %v, want nil list", errs[2])
	}
}

func TestValidateNil(t *testing.T) {
	if errs := Validate(nil); len(errs) != 1 {
		t.Errorf("Validate(nil) returned %d errors, want 1", len(errs))
	}
}

func TestMergeRuns(t *testing.T) {
	got := MergeRuns([]Run{Text("a"), Text(""), Text("b"), Term("x", "t"), Text("c"), Text("d")})
	want := []Run{Text("ab"), Term("x", "t"), Text("cd")}
	if len(got) != len(want) {
		t.Fatalf("MergeRuns = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("run %d = %v, want %v", i, got[i], want[i])
		}
	}
}
