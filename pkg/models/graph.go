// Package models defines node-graph models for pre-flight validation.
package models

// CategoryType represents the category of a graph node.
type CategoryType string

const (
	CategoryTypeInput     CategoryType = "input"     // Entry nodes (data sources)
	CategoryTypeOutput    CategoryType = "output"    // Exit nodes (sinks, reports)
	CategoryTypeProcessor CategoryType = "processor" // Everything in between
)

// FieldType represents the value shape of a configurable node field.
type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeNumber      FieldType = "number"
	FieldTypeSelect      FieldType = "select"
	FieldTypeMultiSelect FieldType = "multiselect"
)

// FieldSchema declares one configurable field of a node type.
type FieldSchema struct {
	Key      string    `json:"key"      validate:"required"`
	Label    string    `json:"label,omitempty"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
}

// GraphNode represents a node instance in a declared run graph.
type GraphNode struct {
	ID           string         `json:"id"       validate:"required"`
	Type         string         `json:"type"`
	Category     CategoryType   `json:"category" validate:"required"`
	Label        string         `json:"label"`
	Fields       []FieldSchema  `json:"fields,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
	ConfigSchema map[string]any `json:"config_schema,omitempty"` // Optional JSON Schema for Config
}

// IsInputNode reports whether the node is an entry point of the graph.
func (n *GraphNode) IsInputNode() bool {
	return n.Category == CategoryTypeInput
}

// IsOutputNode reports whether the node is an exit point of the graph.
func (n *GraphNode) IsOutputNode() bool {
	return n.Category == CategoryTypeOutput
}

// Edge connects two nodes in a declared run graph.
type Edge struct {
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
}

// Graph is a declared node graph submitted for a run.
type Graph struct {
	Nodes []*GraphNode `json:"nodes"`
	Edges []*Edge      `json:"edges"`
}
