package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVendorSimilarity(t *testing.T) {
	tests := []struct {
		name        string
		vendor      string
		description string
		min         float64
		max         float64
	}{
		{"exact", "Fas Gas", "fas gas", 1.0, 1.0},
		{"contained in statement text", "Fas Gas", "FAS GAS #42 LACOMBE AB", 1.0, 1.0},
		{"token overlap with noise", "Receiver General", "RECEIVER GENERAL PAYMENT OTTAWA", 1.0, 1.0},
		{"abbreviated token", "Canadian Tire", "CDN TIRE STORE 00441", 0.5, 1.0},
		{"unrelated", "Fas Gas", "SAFEWAY GROCERIES", 0.0, 0.45},
		{"empty vendor", "", "ANYTHING", 0.0, 0.0},
		{"empty description", "Fas Gas", "", 0.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VendorSimilarity(tt.vendor, tt.description)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "fas gas 42 lacombe ab", normalize("FAS GAS #42, LACOMBE/AB"))
	assert.Equal(t, "", normalize("  ***  "))
}
