package mcp

// ToolDefinitions returns the MCP tool definitions for the knowledge brain.
func ToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name: "brain_think",
			Description: "Answer a question from learned knowledge. " +
				"Returns the answer, a confidence in [0,1], the lookup tier that matched " +
				"and up to two alternative questions. Unknown questions return a fixed fallback answer.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"question": {Type: "string", Description: "Natural language question"},
				},
				Required: []string{"question"},
			},
		},
		{
			Name: "brain_learn",
			Description: "Teach a question/answer pair. Teaching a question that is already known " +
				"(after normalization) replaces its answer and bumps its version.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"question": {Type: "string", Description: "The question to answer"},
					"answer":   {Type: "string", Description: "The answer to return"},
					"confidence": {Type: "number", Description: "Confidence in [0,100]",
						Default: 100},
					"category": {Type: "string", Description: "Category label",
						Default: "general"},
				},
				Required: []string{"question", "answer"},
			},
		},
		{
			Name: "brain_ingest",
			Description: "Mine free text or a table for question/answer pairs and learn them. " +
				"Content inside <private> tags is never learned.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"text":   {Type: "string", Description: "Document text"},
					"source": {Type: "string", Description: "Label recorded on learned entries",
						Default: "document"},
				},
				Required: []string{"text"},
			},
		},
		{
			Name:        "brain_forget",
			Description: "Deactivate a knowledge entry so it no longer answers questions.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"id": {Type: "string", Description: "Entry id returned by brain_learn or brain_think"},
				},
				Required: []string{"id"},
			},
		},
		{
			Name:        "brain_stats",
			Description: "Report query counters, hit rates by tier and knowledge size.",
			InputSchema: InputSchema{Type: "object"},
		},
	}
}
