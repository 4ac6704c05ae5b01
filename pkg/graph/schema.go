package graph

import (
	"github.com/xeipuuv/gojsonschema"

	"github.com/pulseline/pulseline/pkg/models"
)

// schemaConfigErrors validates a node's config against its optional JSON
// Schema. Nodes without a schema pass trivially. Schema violations are
// reported as ordinary configuration errors alongside the required-field
// check; a schema that itself fails to load counts as one violation so
// the node cannot silently skip validation.
func schemaConfigErrors(node *models.GraphNode) []models.ConfigError {
	if len(node.ConfigSchema) == 0 {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(node.ConfigSchema)
	configLoader := gojsonschema.NewGoLoader(node.Config)

	result, err := gojsonschema.Validate(schemaLoader, configLoader)
	if err != nil {
		return []models.ConfigError{{
			NodeID:    node.ID,
			NodeLabel: nodeLabel(node),
			Message:   "Config schema is invalid: " + err.Error(),
		}}
	}

	if result.Valid() {
		return nil
	}

	configErrors := make([]models.ConfigError, 0, len(result.Errors()))

	for _, violation := range result.Errors() {
		configErrors = append(configErrors, models.ConfigError{
			NodeID:    node.ID,
			NodeLabel: nodeLabel(node),
			FieldKey:  violation.Field(),
			Message:   violation.Description(),
		})
	}

	return configErrors
}
