package checklist

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/user/docchat/pkg/assistant"
)

// resultsSchema is the parameters schema of the results function.
const resultsSchema = `{
  "type": "object",
  "properties": {
    "results": {
      "type": "array",
      "description": "Array of checklist analysis results - MUST have one entry for each checklist item. Do NOT provide a single summary entry.",
      "items": {
        "type": "object",
        "properties": {
          "item": {"type": "string", "description": "The exact checklist item name being analyzed"},
          "status": {
            "type": "string",
            "enum": ["Yes", "No", "Partial"],
            "description": "Yes if the item is fully covered in the DPR, No if not covered at all, Partial if partially covered"
          },
          "remarks": {
            "type": "string",
            "description": "DETAILED explanations: If 'No': 'Not covered in the [STATE_NAME] DPR'. If 'Partial': 40+ words explaining what IS and ISN'T covered and why it's partial. If 'Yes': 100+ words covering ALL aspects from DPR including timelines, costs, specifications, requirements, etc."
          }
        },
        "required": ["item", "status", "remarks"]
      }
    }
  },
  "required": ["results"]
}`

// Tools returns the run tools for a checklist analysis.
func Tools() []assistant.Tool {
	return []assistant.Tool{
		assistant.FileSearchTool,
		{
			Type: "function",
			Function: &assistant.Function{
				Name:        FunctionName,
				Description: functionDescription,
				Parameters:  json.RawMessage(resultsSchema),
			},
		},
	}
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		var doc any
		if err := json.Unmarshal([]byte(resultsSchema), &doc); err != nil {
			compileErr = fmt.Errorf("unmarshal schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("checklist.json", doc); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile("checklist.json")
	})
	return compiled, compileErr
}

// validateArguments checks decoded function arguments against the schema.
func validateArguments(payload map[string]any) error {
	s, err := schema()
	if err != nil {
		return err
	}
	return s.Validate(payload)
}
