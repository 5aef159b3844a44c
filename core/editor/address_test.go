package editor

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/termdoc/core/errors"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input   string
		want    Address
		wantErr bool
	}{
		{input: "1.0.0.2:5", want: Address{Path: []int{1, 0, 0, 2}, Offset: 5}},
		{input: "3", want: Address{Path: []int{3}}},
		{input: " 0.1:0 ", want: Address{Path: []int{0, 1}}},
		{input: "", wantErr: true},
		{input: "1..2", wantErr: true},
		{input: "1.", wantErr: true},
		{input: "a.1", wantErr: true},
		{input: "1:2:3", wantErr: true},
		{input: "-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if tt.wantErr {
				var pe *errors.ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("ParseAddress(%q) error = %v, want *ParseError", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddress(%q): %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseAddress(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestAddressString(t *testing.T) {
	a := Address{Path: []int{1, 0, 0, 2}, Offset: 5}
	if got := a.String(); got != "1.0.0.2:5" {
		t.Errorf("String() = %q", got)
	}
	back, err := ParseAddress(a.String())
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if diff := cmp.Diff(a, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLocateAndAddressOf(t *testing.T) {
	d := FromMarkup("<div>Intro</div><div><ul><li>A<ol><li>A1</li><li>A2</li></ol></li><li>B</li></ul></div>")

	for _, id := range d.inlineOrder() {
		pos := Position{Node: id, Offset: d.TextLen(id)}
		addr, err := d.AddressOf(pos)
		if err != nil {
			t.Fatalf("AddressOf(%+v): %v", pos, err)
		}
		back, err := d.Locate(addr)
		if err != nil {
			t.Fatalf("Locate(%s): %v", addr, err)
		}
		if back != pos {
			t.Errorf("Locate(AddressOf(%+v)) = %+v", pos, back)
		}
	}

	pos, err := d.Locate(Address{Path: []int{1, 0, 0, 1}, Offset: 1})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if got := d.Text(pos.Node); got != "A2" {
		t.Errorf("Locate(1.0.0.1) text = %q, want A2", got)
	}
}

func TestLocateErrors(t *testing.T) {
	d := FromMarkup("<div>Intro</div><div><ul><li>A</li></ul></div>")

	tests := []struct {
		name string
		addr Address
		want error
	}{
		{"block out of range", Address{Path: []int{5}}, errors.ErrNotFound},
		{"item out of range", Address{Path: []int{1, 3}}, errors.ErrNotFound},
		{"paragraph has no children", Address{Path: []int{0, 0}}, errors.ErrNotFound},
		{"list is not a cursor target", Address{Path: []int{1}}, errors.ErrInvalidInput},
		{"root is not a cursor target", Address{}, errors.ErrInvalidInput},
		{"offset past end", Address{Path: []int{0}, Offset: 6}, errors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.Locate(tt.addr); !errors.Is(err, tt.want) {
				t.Errorf("Locate(%s) error = %v, want %v", tt.addr, err, tt.want)
			}
		})
	}

	if _, err := d.AddressOf(Position{Node: 42}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("AddressOf(unknown) error = %v, want ErrNotFound", err)
	}
}
