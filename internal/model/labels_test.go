package model

import "testing"

func TestDefaultLabeler(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"exp_type", "Exp Type"},
		{"nircam_filters", "NIRCam Filters"},
		{"miri", "MIRI"},
		{"sort_order", "Sort Order"},
		{"obs_date", "Obs Date"},
		{"readPattern", "Read Pattern"},
		{"proposal-id", "Proposal ID"},
		{"nirspec_read_patterns", "NIRSpec Read Patterns"},
		{"volt4", "Volt 4"},
	}
	for _, tc := range cases {
		if got := DefaultLabeler(tc.in); got != tc.want {
			t.Errorf("DefaultLabeler(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
