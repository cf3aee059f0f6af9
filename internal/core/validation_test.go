package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(line int, fields map[string]string) CandidateItem {
	return CandidateItem{Line: line, Fields: fields}
}

func TestValidator(t *testing.T) {
	validate := NewValidator(testColumns)

	tests := []struct {
		name    string
		fields  map[string]string
		wantErr string
	}{
		{name: "valid", fields: map[string]string{"name": "Widget", "stock": "3", "price": "$4.50"}},
		{name: "optional fields empty", fields: map[string]string{"name": "Widget", "stock": "", "price": ""}},
		{name: "accounting negative", fields: map[string]string{"name": "Widget", "price": "(4.50)"}, wantErr: "row 5: price: must not be negative, got (4.50)"},
		{name: "missing name", fields: map[string]string{"sku": "W1"}, wantErr: "row 5: name: required field is empty"},
		{name: "negative stock", fields: map[string]string{"name": "Widget", "stock": "-1"}, wantErr: "row 5: stock: must not be negative, got -1"},
		{name: "fractional stock", fields: map[string]string{"name": "Widget", "stock": "1.5"}, wantErr: "row 5: stock: invalid number"},
		{name: "non numeric price", fields: map[string]string{"name": "Widget", "price": "abc"}, wantErr: `row 5: price: invalid number "abc"`},
		{name: "enum case insensitive", fields: map[string]string{"name": "Widget", "status": "ACTIVE"}},
		{name: "bad enum", fields: map[string]string{"name": "Widget", "status": "gone"}, wantErr: "must be one of: active, archived"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validate(item(5, tt.fields))
			if tt.wantErr == "" {
				assert.True(t, res.Valid)
				assert.Nil(t, res.Error)
				assert.Empty(t, res.Reason())
				return
			}
			assert.False(t, res.Valid)
			require.NotNil(t, res.Error)
			assert.Contains(t, res.Reason(), tt.wantErr)
			assert.Equal(t, 5, res.Error.Line)
		})
	}
}

func TestValidator_Idempotent(t *testing.T) {
	validate := NewValidator(testColumns)
	inputs := []CandidateItem{
		item(2, map[string]string{"name": "Widget", "stock": "10"}),
		item(3, map[string]string{"name": "", "sku": "W1"}),
		item(4, map[string]string{"name": "Widget", "price": "-3"}),
	}

	for _, in := range inputs {
		first := validate(in)
		second := validate(in)
		assert.Equal(t, first.Valid, second.Valid)
		assert.Equal(t, first.Reason(), second.Reason())
	}
}

func TestValidator_DoesNotMutateItem(t *testing.T) {
	validate := NewValidator(testColumns)
	in := item(2, map[string]string{"name": "Widget", "stock": "-1"})

	validate(in)

	assert.Equal(t, map[string]string{"name": "Widget", "stock": "-1"}, in.Fields)
	assert.False(t, in.Valid)
	assert.Empty(t, in.Reason)
}

func TestValidator_Rules(t *testing.T) {
	noWidgets := func(it CandidateItem) *ValidationError {
		if it.Get("name") == "Widget" {
			return &ValidationError{Field: "name", Message: "widgets are not allowed"}
		}
		return nil
	}
	validate := NewValidator(testColumns, noWidgets)

	res := validate(item(8, map[string]string{"name": "Widget"}))
	require.False(t, res.Valid)
	assert.Equal(t, "row 8: name: widgets are not allowed", res.Reason())

	// Column checks run before rules.
	res = validate(item(9, map[string]string{"name": "Widget", "stock": "x"}))
	assert.Contains(t, res.Reason(), "stock")

	assert.True(t, validate(item(10, map[string]string{"name": "Gadget"})).Valid)
}

func TestValidateCell_Date(t *testing.T) {
	col := ColumnSpec{Name: "order_date", Type: FieldDate}

	assert.NoError(t, ValidateCell("2024-03-15", col))
	assert.NoError(t, ValidateCell("03/15/2024", col))
	assert.Error(t, ValidateCell("someday", col))
	assert.NoError(t, ValidateCell("", col))
}
