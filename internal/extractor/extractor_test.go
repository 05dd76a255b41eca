package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_NumericFamily(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"bare run", "Unit 1234567890 stopped heating", []string{"1234567890"}},
		{"vid label", "VID: 2234567890", []string{"2234567890"}},
		{"vid label no space", "see VID3234567890 please", []string{"3234567890"}},
		{"serial number", "Serial Number 4234567890", []string{"4234567890"}},
		{"serial hash", "Serial# 5234567890", []string{"5234567890"}},
		{"device id", "Device ID 6234567890", []string{"6234567890"}},
		{"grouped 4-3-3", "unit 7234-567-890 returned", []string{"7234567890"}},
		{"grouped 3-3-4 spaces", "unit 823 456 7890 returned", []string{"8234567890"}},
		{"inside token", "SN9234567890", []string{"9234567890"}},
		{"too short", "order 123456789", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(Input{Description: tt.text})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_ReservedPrefixFamily(t *testing.T) {
	t.Run("exact lower case is upper-cased", func(t *testing.T) {
		assert.Equal(t, []string{"5A00123456"}, Extract(Input{Subject: "unit 5a00123456"}))
	})

	t.Run("embedded separators are stripped", func(t *testing.T) {
		assert.Equal(t, []string{"5A12345678"}, Extract(Input{Subject: "5A12-34-5678"}))
		assert.Equal(t, []string{"5A12345678"}, Extract(Input{Subject: "5A 12.34 5678"}))
	})

	t.Run("trailing text is truncated", func(t *testing.T) {
		got := Extract(Input{Description: "Device 5A12-34-5678 returned by customer"})
		assert.Equal(t, []string{"5A12345678"}, got)
	})

	t.Run("too few characters", func(t *testing.T) {
		assert.Empty(t, Extract(Input{Subject: "5A1234"}))
	})
}

func TestExtract_DeduplicatesAcrossSources(t *testing.T) {
	in := Input{
		Subject:       "RMA for 1234567890",
		Description:   "Customer reports 1234567890 and 5A00ABCDEF",
		Conversations: []string{"<p>Re: 5a00abcdef</p>", "", "VID 0987654321"},
		CustomField:   "1234567890, 1111111111",
	}

	got := Extract(in)
	assert.Equal(t, []string{"0987654321", "1111111111", "1234567890", "5A00ABCDEF"}, got)
	assert.Equal(t, got, Extract(in), "extraction is deterministic")
}

func TestExtract_Empty(t *testing.T) {
	assert.Empty(t, Extract(Input{}))
	assert.Empty(t, Extract(Input{Subject: "   ", Conversations: []string{"no ids here"}}))
}

func TestIsReservedPrefix(t *testing.T) {
	assert.True(t, IsReservedPrefix("5A00123456"))
	assert.True(t, IsReservedPrefix("5AZZ9988AA"))
	assert.False(t, IsReservedPrefix("5a00123456"))
	assert.False(t, IsReservedPrefix("1234567890"))
	assert.False(t, IsReservedPrefix("5A0012345"))
}

func TestSearchVariants(t *testing.T) {
	got := SearchVariants("5A12345678")
	assert.Contains(t, got, "5a12345678")
	assert.Contains(t, got, "5a 12 34 5678")
	assert.Contains(t, got, "5a-12-34-5678")
	assert.Contains(t, got, "5a12.345.678")
	assert.Contains(t, got, "5a12-34-5678")
	assert.Len(t, got, 10)

	numeric := SearchVariants("1234567890")
	assert.Contains(t, numeric, "1234-567-890")
	assert.Contains(t, numeric, "123 456 7890")
	assert.Len(t, numeric, 7)

	assert.Equal(t, []string{"abc"}, SearchVariants("ABC"))
}
