package catalogs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Paracétamol 500mg", "paracetamol 500mg"},
		{"  AMOXICILLINE/Acide   clavulanique ", "amoxicilline acide clavulanique"},
		{"Ibuprofène-200", "ibuprofene 200"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestFilterByDescription(t *testing.T) {
	products := []Product{
		{Code: "p3", Description: "Paracétamol sirop"},
		{Code: "p1", Description: "Amoxicilline 1g"},
		{Code: "p2", Description: "PARACETAMOL 500 mg"},
	}

	got := FilterByDescription(products, "paracetamol")
	if assert.Len(t, got, 2) {
		assert.Equal(t, "p2", got[0].Code)
		assert.Equal(t, "p3", got[1].Code)
	}

	assert.Empty(t, FilterByDescription(products, "  "))
	assert.Empty(t, FilterByDescription(products, "aspirin"))
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "abc12", NormalizeCode("  ABC12 "))
}
