package searchservicedocuments

import (
	"gcloud-docgen/internal/catalog"
	"gcloud-docgen/internal/common/validation"
)

const maxLimit = 200

func GetInputSchema() validation.JSONSchema {
	numeric := `^[0-9]+$`
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"serviceName": {
				Type:      "string",
				MinLength: intPtr(1),
				MaxLength: intPtr(200),
			},
			"docTypes": {
				Type: "array",
				Items: &validation.Property{
					Type: "string",
					Enum: []string{string(catalog.DocTypeServiceDescription), string(catalog.DocTypePricing)},
				},
			},
			"frameworkVersions": {
				Type:  "array",
				Items: &validation.Property{Type: "string", Pattern: &numeric},
			},
			"lots": {
				Type:  "array",
				Items: &validation.Property{Type: "string", Pattern: &numeric},
			},
			"limit": {
				Type:    "integer",
				Minimum: floatPtr(1),
				Maximum: floatPtr(maxLimit),
			},
		},
		Required:             []string{"serviceName"},
		AdditionalProperties: true,
	}
}

func intPtr(i int) *int {
	return &i
}

func floatPtr(f float64) *float64 {
	return &f
}
