package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// sourceProperties are shared by every tool that loads an image.
func sourceProperties() map[string]interface{} {
	return map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the image file. Takes precedence over source.",
		},
		"source": map[string]interface{}{
			"type":        "string",
			"description": "Base64 image data, a data: URI, or an http(s) URL",
		},
		"type": map[string]interface{}{
			"type":        "string",
			"description": "Extension hint for the source (jpeg, png, webp, avif, gif, bmp, tiff). Detected from the content when omitted.",
		},
	}
}

func outputPathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Optional absolute path to write the result to. When set, the base64 data is omitted from the response.",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	info := sourceProperties()

	optim := sourceProperties()
	optim["output_type"] = map[string]interface{}{
		"type":        "string",
		"description": "Output format: jpeg, png, webp, avif, gif, or auto. Defaults to the source format.",
	}
	optim["accept"] = map[string]interface{}{
		"type":        "string",
		"description": "Accept header consulted when output_type is auto",
	}
	optim["quality"] = map[string]interface{}{
		"type":        "integer",
		"minimum":     0,
		"maximum":     100,
		"description": "Encoder quality. 100 selects lossless webp.",
	}
	optim["speed"] = map[string]interface{}{
		"type":        "integer",
		"minimum":     0,
		"maximum":     10,
		"description": "AVIF encoder speed; lower is slower and smaller",
	}
	optim["width"] = map[string]interface{}{
		"type":        "integer",
		"minimum":     0,
		"description": "Target width; 0 derives it from height",
	}
	optim["height"] = map[string]interface{}{
		"type":        "integer",
		"minimum":     0,
		"description": "Target height; 0 derives it from width",
	}
	optim["crop"] = map[string]interface{}{
		"type":        "object",
		"description": "Rectangle to keep, applied before resizing",
		"properties": map[string]interface{}{
			"x":      map[string]interface{}{"type": "integer", "minimum": 0},
			"y":      map[string]interface{}{"type": "integer", "minimum": 0},
			"width":  map[string]interface{}{"type": "integer", "minimum": 1},
			"height": map[string]interface{}{"type": "integer", "minimum": 1},
		},
		"required": []string{"width", "height"},
	}
	optim["watermark"] = map[string]interface{}{
		"type":        "string",
		"description": "Watermark image as base64, data: URI or http(s) URL",
	}
	optim["position"] = map[string]interface{}{
		"type":        "string",
		"enum":        []string{"top-left", "top", "top-right", "left", "center", "right", "bottom-left", "bottom", "bottom-right"},
		"description": "Watermark anchor. Default bottom-right.",
	}
	optim["margin_left"] = map[string]interface{}{
		"type":        "integer",
		"description": "Horizontal watermark offset in pixels, may be negative",
	}
	optim["margin_top"] = map[string]interface{}{
		"type":        "integer",
		"description": "Vertical watermark offset in pixels, may be negative",
	}
	optim["output_path"] = outputPathProperty()

	return []Tool{
		{
			Name:        "image_info",
			Description: "Load an image and return its dimensions, format, alpha and size in bytes.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": info,
			},
		},
		{
			Name:        "image_optim",
			Description: "Optimise an image: optional watermark, crop and resize, then re-encode. Reports the size ratio against the input and, when geometry is untouched, the DSSIM difference x 1000.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": optim,
			},
		},
		{
			Name:        "image_pipeline",
			Description: "Run an explicit list of operations. The first must be load; later ones may be resize, crop, grayscale, watermark, optim and diff.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"operations": map[string]interface{}{
						"type":        "array",
						"description": `Operations such as {"type":"load","locator":"<base64 or URL>"}, {"type":"resize","width":200}, {"type":"optim","format":"webp","quality":75}`,
						"minItems":    1,
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"type": map[string]interface{}{
									"type": "string",
									"enum": []string{"load", "resize", "crop", "grayscale", "watermark", "optim", "diff"},
								},
							},
							"required": []string{"type"},
						},
					},
					"output_path": outputPathProperty(),
				},
				"required": []string{"operations"},
			},
		},
	}
}
