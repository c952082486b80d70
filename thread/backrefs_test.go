package thread

import (
	"reflect"
	"testing"
)

func TestDiffBackRefs(t *testing.T) {
	cases := []struct {
		name     string
		existing []string
		fresh    []string
		keep     int
		add      []string
		merged   []string
	}{
		{"replace last", []string{"a", "b", "c"}, []string{"a", "b", "d"}, 2, []string{"d"}, []string{"a", "b", "d"}},
		{"pure append", []string{"a", "b"}, []string{"a", "b", "c"}, 2, []string{"c"}, []string{"a", "b", "c"}},
		{"identical", []string{"a", "b", "c"}, []string{"a", "b", "c"}, 3, nil, []string{"a", "b", "c"}},
		{"existing longer", []string{"a", "b", "c"}, []string{"a"}, 1, nil, []string{"a"}},
		{"diverge at start", []string{"x", "b"}, []string{"a", "b"}, 0, []string{"a", "b"}, []string{"a", "b"}},
		{"empty existing", nil, []string{"a"}, 0, []string{"a"}, []string{"a"}},
		{"empty fresh", []string{"a"}, nil, 0, nil, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keep, add := DiffBackRefs(tc.existing, tc.fresh)
			if keep != tc.keep || !reflect.DeepEqual(add, tc.add) {
				t.Fatalf("DiffBackRefs(%v, %v) = %d, %v; want %d, %v", tc.existing, tc.fresh, keep, add, tc.keep, tc.add)
			}
			if got := MergeBackRefs(tc.existing, tc.fresh); !reflect.DeepEqual(got, tc.merged) {
				t.Fatalf("MergeBackRefs(%v, %v) = %v, want %v", tc.existing, tc.fresh, got, tc.merged)
			}
		})
	}
}

func TestBackReferences(t *testing.T) {
	posts := []PostRefs{
		{ID: "1"},
		{ID: "2", References: []Reference{{Post: "1"}, {Post: "2"}}},
		{ID: "3", References: []Reference{{Post: "1"}, {Post: "1"}, {Post: "2"}}},
		{ID: "4", References: []Reference{{Board: "b", Post: "1"}, {Board: "other", Post: "2"}}},
		{ID: "5", References: []Reference{{Thread: "99", Post: "1"}, {Thread: "1", Post: "3"}, {Post: "404"}}},
	}
	got := BackReferences("b", "1", posts)
	want := map[string][]string{
		"1": {"2", "3", "4"},
		"2": {"3"},
		"3": {"5"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BackReferences = %v, want %v", got, want)
	}
}
