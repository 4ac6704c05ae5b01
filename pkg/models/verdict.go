package models

// ValidationType classifies the first failing category of checks, or
// "valid" when every check passed.
type ValidationType string

const (
	ValidationTypeStructural    ValidationType = "structural"
	ValidationTypeConfiguration ValidationType = "configuration"
	ValidationTypeConnectivity  ValidationType = "connectivity"
	ValidationTypeValid         ValidationType = "valid"
)

// ConfigError reports one missing or empty required field on one node.
type ConfigError struct {
	NodeID    string `json:"node_id"`
	NodeLabel string `json:"node_label"`
	FieldKey  string `json:"field_key"`
	Message   string `json:"message"`
}

// NodeRef is a light reference to a node used in verdict details.
type NodeRef struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Verdict is the structured result of graph validation. It is an
// ordinary return value, never an error: the caller uses CanExecute to
// gate the start of a run.
type Verdict struct {
	IsValid        bool           `json:"is_valid"`
	CanExecute     bool           `json:"can_execute"`
	Message        string         `json:"message"`
	Details        string         `json:"details,omitempty"`
	ConfigErrors   []ConfigError  `json:"config_errors,omitempty"`
	FloatingNodes  []NodeRef      `json:"floating_nodes,omitempty"`
	ValidationType ValidationType `json:"validation_type"`
}
