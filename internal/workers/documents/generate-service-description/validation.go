package generateservicedescription

// GetInputSchema is the draft-07 schema of the job variables.
func GetInputSchema() map[string]interface{} {
	stringList := func(max int) map[string]interface{} {
		return map[string]interface{}{
			"type":     "array",
			"maxItems": max,
			"items":    map[string]interface{}{"type": "string"},
		}
	}
	return map[string]interface{}{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"type":     "object",
		"required": []interface{}{"title"},
		"properties": map[string]interface{}{
			"title": map[string]interface{}{
				"type":      "string",
				"minLength": 1,
				"maxLength": 100,
			},
			"description": map[string]interface{}{"type": "string"},
			"features":    stringList(10),
			"benefits":    stringList(10),
			"serviceDefinition": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"subtitle"},
					"properties": map[string]interface{}{
						"subtitle": map[string]interface{}{"type": "string", "minLength": 1},
						"content":  map[string]interface{}{"type": "string"},
						"images": map[string]interface{}{
							"type":  "array",
							"items": map[string]interface{}{"type": "string"},
						},
						"table": map[string]interface{}{
							"type":  "array",
							"items": map[string]interface{}{"type": "array"},
						},
					},
				},
			},
			"serviceName":      map[string]interface{}{"type": "string", "maxLength": 200},
			"frameworkVersion": map[string]interface{}{"type": "string", "pattern": `^[0-9]+$`},
			"lot":              map[string]interface{}{"type": "string", "pattern": `^[0-9]+$`},
			"folder":           map[string]interface{}{"type": "string"},
			"draft":            map[string]interface{}{"type": "boolean"},
			"owner":            map[string]interface{}{"type": "string", "maxLength": 200},
			"sponsor":          map[string]interface{}{"type": "string", "maxLength": 200},
			"editedBy":         map[string]interface{}{"type": "string", "maxLength": 200},
			"templatePath":     map[string]interface{}{"type": "string"},
		},
	}
}
