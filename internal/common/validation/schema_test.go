package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestValidateInput(t *testing.T) {
	schema := JSONSchema{
		Type: "object",
		Properties: map[string]Property{
			"title":    {Type: "string", MinLength: intPtr(1), MaxLength: intPtr(5)},
			"features": {Type: "array", MaxItems: intPtr(2), Items: &Property{Type: "string"}},
			"version":  {Type: "integer"},
			"draft":    {Type: "boolean"},
		},
		Required: []string{"title"},
	}

	tests := []struct {
		name      string
		input     map[string]interface{}
		valid     bool
		errorCode string
		field     string
	}{
		{
			name:  "valid",
			input: map[string]interface{}{"title": "Café", "features": []interface{}{"a"}, "version": float64(15)},
			valid: true,
		},
		{
			name:      "missing title",
			input:     map[string]interface{}{},
			errorCode: "REQUIRED_FIELD_MISSING",
			field:     "title",
		},
		{
			name:      "too many features",
			input:     map[string]interface{}{"title": "x", "features": []interface{}{"a", "b", "c"}},
			errorCode: "MAX_ITEMS_VIOLATION",
			field:     "features",
		},
		{
			name:      "feature item wrong type",
			input:     map[string]interface{}{"title": "x", "features": []interface{}{1.0}},
			errorCode: "INVALID_TYPE",
			field:     "features[0]",
		},
		{
			name:      "fractional version",
			input:     map[string]interface{}{"title": "x", "version": 14.5},
			errorCode: "INVALID_TYPE",
			field:     "version",
		},
		{
			name:      "title too long",
			input:     map[string]interface{}{"title": "abcdef"},
			errorCode: "MAX_LENGTH_VIOLATION",
			field:     "title",
		},
		{
			name:      "extra field",
			input:     map[string]interface{}{"title": "x", "colour": "red"},
			errorCode: "EXTRA_FIELD",
			field:     "colour",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateInput(tt.input, schema)
			assert.Equal(t, tt.valid, result.Valid, result.GetErrorMessages())
			if !tt.valid {
				require.NotEmpty(t, result.GetErrorsForField(tt.field), result.GetErrorMessages())
				assert.Equal(t, tt.errorCode, result.GetErrorsForField(tt.field)[0].Code)
			}
		})
	}
}

func TestValidateDocument(t *testing.T) {
	schema := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"title"},
		"properties": map[string]interface{}{
			"title": map[string]interface{}{"type": "string", "minLength": 1},
			"sections": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"subtitle"},
				},
			},
		},
	}

	result, err := ValidateDocument(map[string]interface{}{
		"title":    "Python Dev",
		"sections": []interface{}{map[string]interface{}{"subtitle": "Onboarding"}},
	}, schema)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	result, err = ValidateDocument(map[string]interface{}{
		"title":    "",
		"sections": []interface{}{map[string]interface{}{}},
	}, schema)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
	assert.NotEmpty(t, result.GetErrorsForField("title"), result.GetErrorMessages())
}

func TestValidateInput_SortedErrors(t *testing.T) {
	schema := JSONSchema{
		Type: "object",
		Properties: map[string]Property{
			"serviceName": {Type: "string"},
			"limit":       {Type: "integer"},
			"lots":        {Type: "array"},
		},
		Required: []string{"serviceName"},
	}

	result := ValidateInput(map[string]interface{}{"limit": "ten", "lots": "3", "zone": 1}, schema)
	require.False(t, result.Valid)
	assert.Equal(t, []string{
		"limit: expected integer, got string",
		"lots: expected array, got string",
		"serviceName: required field missing",
		"zone: field not allowed in schema",
	}, result.GetErrorMessages())
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("owner@example.com"))
	assert.False(t, ValidateEmail("not-an-email"))
}
