// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductCode_CasingVariants(t *testing.T) {
	tests := []struct {
		name string
		p    Product
		want string
	}{
		{"lower snake", Product{"style_code": "AB123"}, "AB123"},
		{"upper snake", Product{"STYLE_CODE": "CD456"}, "CD456"},
		{"pascal", Product{"StyleCode": "EF789"}, "EF789"},
		{"camel", Product{"styleCode": "GH012"}, "GH012"},
		{"lower wins over upper", Product{"style_code": "A", "STYLE_CODE": "B"}, "A"},
		{"missing", Product{"brand": "나이키"}, ""},
		{"empty string", Product{"style_code": ""}, ""},
		{"non-string", Product{"style_code": 42}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProductCode(tt.p))
		})
	}
}

func TestProductIndex_FirstOccurrenceWins(t *testing.T) {
	rows := []Product{
		{"style_code": "A", "brand": "first"},
		{"style_code": "A", "brand": "second"},
		{"style_code": "B"},
		{"brand": "codeless"},
	}
	idx := ProductIndex(rows)

	require.Len(t, idx, 2)
	assert.Equal(t, "first", idx["A"]["brand"])
}

func TestPickProducts_DropsMissingCodes(t *testing.T) {
	rows := []Product{
		{"style_code": "A"},
		{"style_code": "B"},
	}
	picked := PickProducts([]string{"B", "Z", "A"}, rows)

	require.Len(t, picked, 2)
	assert.Equal(t, "B", ProductCode(picked[0]))
	assert.Equal(t, "A", ProductCode(picked[1]))
}

func TestFallbackProducts_Caps(t *testing.T) {
	rows := make([]Product, 35)
	for i := range rows {
		rows[i] = Product{"style_code": string(rune('A' + i))}
	}
	assert.Len(t, FallbackProducts(rows, 30), 30)
	assert.Len(t, FallbackProducts(rows[:3], 30), 3)
}

func TestNewGroupedProducts_FirstSeenOrder(t *testing.T) {
	rows := []Product{
		{"style_code": "A", "category": "상의"},
		{"style_code": "B", "category": "바지"},
		{"style_code": "C", "category": "상의"},
	}
	g := NewGroupedProducts(rows)

	assert.Equal(t, []string{"상의", "바지"}, g.Categories())
	assert.Len(t, g.Get("상의"), 2)
	assert.Len(t, g.Get("바지"), 1)
}

func TestNewGroupedProducts_Fallbacks(t *testing.T) {
	rows := []Product{
		{"style_code": "A", "subcategory": "셔츠"},
		{"style_code": "B"},
	}
	g := NewGroupedProducts(rows)

	assert.Equal(t, []string{"셔츠", OtherCategory}, g.Categories())
}

func TestGroupedProducts_JSONRoundTrip(t *testing.T) {
	rows := []Product{
		{"style_code": "A", "category": "상의"},
		{"style_code": "B", "category": "바지"},
	}
	g := NewGroupedProducts(rows)

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var back GroupedProducts
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"상의", "바지"}, back.Categories())
	assert.Len(t, back.Get("상의"), 1)
}
