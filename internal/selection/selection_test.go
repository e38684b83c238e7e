package selection

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		want []int
	}{
		{"nil input", nil, []int{}},
		{"empty input", []int{}, []int{}},
		{"already sorted", []int{1, 2, 3}, []int{1, 2, 3}},
		{"unsorted", []int{5, 1, 3, 2}, []int{1, 2, 3, 5}},
		{"duplicates", []int{25544, 33591, 25544}, []int{25544, 33591}},
		{"single", []int{25544}, []int{25544}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := []int{3, 1, 2}
	Normalize(in)
	if !reflect.DeepEqual(in, []int{3, 1, 2}) {
		t.Errorf("input mutated: %v", in)
	}
}

func TestPayload(t *testing.T) {
	if got := Payload(nil); got != "[]" {
		t.Errorf("Payload(nil) = %q, want %q", got, "[]")
	}
	if got := Payload([]int{3, 1, 1}); got != "[1,3]" {
		t.Errorf("Payload = %q, want %q", got, "[1,3]")
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name      string
		selected  []int
		available []int
		want      []int
	}{
		{"empty selection passes through", nil, []int{1, 2, 3}, []int{}},
		{"empty availability keeps selection", []int{2, 1}, nil, []int{1, 2}},
		{"stale ids dropped", []int{1, 4}, []int{1, 2, 3}, []int{1}},
		{"full set collapses", []int{3, 1, 2}, []int{1, 2, 3}, []int{}},
		{"subset kept", []int{2}, []int{1, 2, 3}, []int{2}},
		{"duplicates collapse to full set", []int{1, 1, 2, 3}, []int{1, 2, 3}, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Canonicalize(tt.selected, tt.available)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Canonicalize(%v, %v) = %v, want %v", tt.selected, tt.available, got, tt.want)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	if got := Default(nil, 5); len(got) != 0 {
		t.Errorf("Default(nil) = %v, want empty", got)
	}
	got := Default([]int{5, 1, 3, 2}, 2)
	if !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("Default = %v, want [1 2]", got)
	}
	got = Default([]int{2, 1}, 10)
	if !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("Default = %v, want [1 2]", got)
	}
}

func TestEqual(t *testing.T) {
	if !Equal([]int{3, 1}, []int{1, 3, 3}) {
		t.Error("expected normalized selections to be equal")
	}
	if Equal([]int{1}, []int{2}) {
		t.Error("expected selections to differ")
	}
	if !Equal(nil, []int{}) {
		t.Error("expected nil and empty to be equal")
	}
}
