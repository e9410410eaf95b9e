package workflow

// definitionSchema is the structural contract for workflow definition
// files. Field-level rules (id casing, required steps) live on the
// model validate tags; this schema catches shape mistakes early.
func definitionSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"name", "jobs"},
		"properties": map[string]any{
			"id":   map[string]any{"type": "string"},
			"name": map[string]any{"type": "string", "minLength": 1},
			"on": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"push": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"branches": stringArray(),
							"tags":     stringArray(),
						},
					},
					"schedule": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []string{"cron"},
							"properties": map[string]any{
								"cron": map[string]any{"type": "string"},
							},
						},
					},
					"workflow_dispatch": map[string]any{"type": "object"},
				},
			},
			"env": stringMap(),
			"jobs": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    jobSchema(),
			},
			"metadata": map[string]any{"type": "object"},
		},
	}
}

func jobSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"id", "steps"},
		"properties": map[string]any{
			"id":      map[string]any{"type": "string", "minLength": 1},
			"name":    map[string]any{"type": "string"},
			"needs":   stringArray(),
			"if":      map[string]any{"type": "string"},
			"runs_on": map[string]any{"type": "string"},
			"strategy": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"fail_fast":    map[string]any{"type": "boolean"},
					"max_parallel": map[string]any{"type": "integer", "minimum": 0},
					"matrix": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"axes": map[string]any{
								"type": "array",
								"items": map[string]any{
									"type":     "object",
									"required": []string{"name", "values"},
									"properties": map[string]any{
										"name":   map[string]any{"type": "string"},
										"values": map[string]any{"type": "array", "minItems": 1},
									},
								},
							},
							"include": map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
							"exclude": map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
						},
					},
				},
			},
			"env": stringMap(),
			"steps": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    stepSchema(),
			},
			"outputs":         stringMap(),
			"timeout_minutes": map[string]any{"type": "integer", "minimum": 0},
		},
	}
}

func stepSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":                map[string]any{"type": "string"},
			"name":              map[string]any{"type": "string"},
			"if":                map[string]any{"type": "string"},
			"run":               map[string]any{"type": "string"},
			"uses":              map[string]any{"type": "string"},
			"with":              map[string]any{"type": "object"},
			"env":               stringMap(),
			"continue_on_error": map[string]any{"type": "boolean"},
		},
	}
}

func stringArray() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}

func stringMap() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": map[string]any{"type": "string"},
	}
}
