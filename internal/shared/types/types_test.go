package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedicareNumber(t *testing.T) {
	m, err := NewMedicareNumber("29503431", 1)
	require.NoError(t, err)
	assert.True(t, m.IsValid())
	assert.Len(t, m.String(), 10)

	parsed, err := ParseMedicareNumber(m.Formatted())
	require.NoError(t, err)
	assert.Equal(t, m, parsed)
	assert.Equal(t, "******"+m.String()[6:], m.Masked())
}

func TestMedicareNumberInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too short", "29503431"},
		{"bad first digit", "1950343111"},
		{"letters", "29A0343111"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMedicareNumber(tt.input)
			assert.Error(t, err)
		})
	}

	m, err := NewMedicareNumber("29503431", 1)
	require.NoError(t, err)
	wrong := []byte(m)
	wrong[8] = '0' + (wrong[8]-'0'+1)%10
	assert.False(t, MedicareNumber(wrong).IsValid())

	_, err = NewMedicareNumber("29503431", 0)
	assert.Error(t, err)
}

func TestProviderNumber(t *testing.T) {
	p, err := NewProviderNumber("234567", 3)
	require.NoError(t, err)
	assert.Len(t, p.String(), 8)
	assert.True(t, p.IsValid())

	tampered := ProviderNumber(string(p)[:7] + "Z")
	assert.False(t, tampered.IsValid())

	_, err = NewProviderNumber("23456", 0)
	assert.Error(t, err)
}

func TestIDs(t *testing.T) {
	a := NewDeterministicID("run", "2024-03-15")
	b := NewDeterministicID("run", "2024-03-15")
	assert.Equal(t, a, b)
	assert.False(t, NewID().IsZero())

	_, err := ParseID("not-a-uuid")
	assert.Error(t, err)
	assert.Equal(t, a.String(), a.UUID().String())
}

func TestAddressString(t *testing.T) {
	a := NewAddress("12 George St", "Parramatta", StateNSW, "2150")
	assert.Equal(t, "12 George St, Parramatta NSW 2150", a.String())
	assert.Equal(t, "AU", a.Country)
}
