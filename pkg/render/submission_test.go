package render

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergeHiddenFields(t *testing.T) {
	base := map[string]string{"existing": "1"}

	got := MergeHiddenFields(base,
		CSRFToken("csrf_token", "abc"),
		MethodOverride("patch"),
		Hidden("  ", "dropped"),
		Hidden("existing", "2"),
	)

	want := map[string]string{
		"existing":   "2",
		"csrf_token": "abc",
		"_method":    "PATCH",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeHiddenFields mismatch (-want +got):\n%s", diff)
	}

	// The input map is not mutated.
	if base["existing"] != "1" {
		t.Errorf("base mutated: %v", base)
	}
}

func TestMergeHiddenFieldsEmpty(t *testing.T) {
	if got := MergeHiddenFields(nil); got != nil {
		t.Errorf("MergeHiddenFields(nil) = %v, want nil", got)
	}
	if got := MergeHiddenFields(nil, Hidden("", "x")); got != nil {
		t.Errorf("MergeHiddenFields with blank name = %v, want nil", got)
	}
}

func TestSortedHiddenFields(t *testing.T) {
	got := SortedHiddenFields(map[string]string{
		"b":  "2",
		"a":  "1",
		" ":  "dropped",
		"c ": "3",
	})

	want := []HiddenField{
		{Name: "a", Value: "1"},
		{Name: "b", Value: "2"},
		{Name: "c", Value: "3"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SortedHiddenFields mismatch (-want +got):\n%s", diff)
	}

	if got := SortedHiddenFields(nil); got != nil {
		t.Errorf("SortedHiddenFields(nil) = %v, want nil", got)
	}
}
