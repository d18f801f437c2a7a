package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductHasFeature(t *testing.T) {
	tests := []struct {
		name     string
		features string
		feature  string
		want     bool
	}{
		{"enabled flag", `{"downloads":true}`, "downloads", true},
		{"disabled flag", `{"downloads":false}`, "downloads", false},
		{"unknown flag", `{"downloads":true}`, "forum", false},
		{"empty features", "", "downloads", false},
		{"invalid json", "{not json", "downloads", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Product{Features: tt.features}
			assert.Equal(t, tt.want, p.HasFeature(tt.feature))
		})
	}
}

func TestProductLabel(t *testing.T) {
	p := &Product{Title: "Gold Membership", DisplayName: "Gold"}
	assert.Equal(t, "Gold", p.Label())

	p.DisplayName = ""
	assert.Equal(t, "Gold Membership", p.Label())
}
