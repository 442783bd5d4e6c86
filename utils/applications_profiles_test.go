package utils

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestSplitProfileNames(t *testing.T) {
	tests := []csvExpectation{
		{csv: "production-usa,b,c", want: []string{"production-usa", "b", "c"}},
		{csv: "a, ,c ", want: []string{"a", "c"}},
		{csv: "  ,   ,, ", want: []string{}},
		{csv: "", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.csv, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitProfileNames(tt.csv))
		})
	}
}

func TestScrubProfiles(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "leading default", in: []string{"default", "prod"}, want: []string{"prod"}},
		{name: "every default", in: []string{"eu", "default", "prod", "default"}, want: []string{"eu", "prod"}},
		{name: "case sensitive", in: []string{"Default", "DEFAULT"}, want: []string{"Default", "DEFAULT"}},
		{name: "only default", in: []string{"default"}, want: []string{}},
		{name: "none", in: nil, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScrubProfiles(tt.in))
		})
	}
}

type csvExpectation struct {
	csv  string
	want []string
}
