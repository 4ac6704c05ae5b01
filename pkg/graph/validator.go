// Package graph implements pre-flight validation of declared run graphs.
// Validation is a pure function over nodes and edges; the verdict gates
// whether a run is allowed to start.
package graph

import (
	"fmt"
	"strings"

	"github.com/pulseline/pulseline/pkg/models"
)

// Validate runs the ordered check sequence over a declared graph.
//
// Checks 1 to 5 are structural and short-circuit on first failure; they
// are the cheapest and most fundamental. Check 6 (configuration) is
// exhaustive within its category: it collects every violation across
// every node before returning. Check 7 (connectivity) runs last because
// its two-pass BFS is the most expensive and the most cosmetic.
func Validate(g *models.Graph) models.Verdict {
	if g == nil || len(g.Nodes) == 0 {
		return structuralInvalid("Graph has no nodes", "Add at least one node before starting a run")
	}

	inputs := nodesByCategory(g, models.CategoryTypeInput)
	if len(inputs) == 0 {
		return structuralInvalid("Graph has no input node", "Every run graph needs at least one input node")
	}

	outputs := nodesByCategory(g, models.CategoryTypeOutput)
	if len(outputs) == 0 {
		return structuralInvalid("Graph has no output node", "Every run graph needs at least one output node")
	}

	if len(g.Edges) == 0 {
		return structuralInvalid("Graph has no edges", "Connect the nodes before starting a run")
	}

	forward := adjacency(g.Edges, false)

	if !anyPathToOutput(g, inputs, forward) {
		return structuralInvalid(
			"No path from an input node to an output node",
			"At least one input must reach an output through the graph",
		)
	}

	if verdict, failed := checkConfiguration(g); failed {
		return verdict
	}

	if verdict, failed := checkConnectivity(g, inputs, outputs, forward); failed {
		return verdict
	}

	return models.Verdict{
		IsValid:        true,
		CanExecute:     true,
		Message:        "Graph is valid and executable",
		ValidationType: models.ValidationTypeValid,
	}
}

func structuralInvalid(message, details string) models.Verdict {
	return models.Verdict{
		IsValid:        false,
		CanExecute:     false,
		Message:        message,
		Details:        details,
		ValidationType: models.ValidationTypeStructural,
	}
}

func nodesByCategory(g *models.Graph, category models.CategoryType) []*models.GraphNode {
	var nodes []*models.GraphNode

	for _, node := range g.Nodes {
		if node.Category == category {
			nodes = append(nodes, node)
		}
	}

	return nodes
}

// adjacency builds the forward (or reversed) adjacency list of the graph.
func adjacency(edges []*models.Edge, reversed bool) map[string][]string {
	adj := make(map[string][]string, len(edges))

	for _, edge := range edges {
		from, to := edge.Source, edge.Target
		if reversed {
			from, to = to, from
		}

		adj[from] = append(adj[from], to)
	}

	return adj
}

// anyPathToOutput tries a depth-first search from each input node,
// short-circuiting on the first input that reaches any output.
func anyPathToOutput(g *models.Graph, inputs []*models.GraphNode, forward map[string][]string) bool {
	outputIDs := make(map[string]struct{})

	for _, node := range g.Nodes {
		if node.IsOutputNode() {
			outputIDs[node.ID] = struct{}{}
		}
	}

	for _, input := range inputs {
		if dfsReachesAny(input.ID, forward, outputIDs) {
			return true
		}
	}

	return false
}

func dfsReachesAny(start string, adj map[string][]string, targets map[string]struct{}) bool {
	visited := map[string]struct{}{start: {}}
	stack := []string{start}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, hit := targets[current]; hit {
			return true
		}

		for _, next := range adj[current] {
			if _, seen := visited[next]; seen {
				continue
			}

			visited[next] = struct{}{}
			stack = append(stack, next)
		}
	}

	return false
}

// checkConfiguration verifies every required field of every node. Unlike
// the structural checks it never short-circuits: the user gets the full
// list of violations in one pass.
func checkConfiguration(g *models.Graph) (models.Verdict, bool) {
	var configErrors []models.ConfigError

	for _, node := range g.Nodes {
		for _, field := range node.Fields {
			if !field.Required {
				continue
			}

			if err, missing := requiredFieldError(node, field); missing {
				configErrors = append(configErrors, err)
			}
		}

		configErrors = append(configErrors, schemaConfigErrors(node)...)
	}

	if len(configErrors) == 0 {
		return models.Verdict{}, false
	}

	return models.Verdict{
		IsValid:        false,
		CanExecute:     false,
		Message:        fmt.Sprintf("%d node(s) have incomplete configuration", countNodes(configErrors)),
		Details:        summarizeNodes(configErrors),
		ConfigErrors:   configErrors,
		ValidationType: models.ValidationTypeConfiguration,
	}, true
}

func requiredFieldError(node *models.GraphNode, field models.FieldSchema) (models.ConfigError, bool) {
	value, present := node.Config[field.Key]

	label := field.Label
	if label == "" {
		label = field.Key
	}

	configError := models.ConfigError{
		NodeID:    node.ID,
		NodeLabel: nodeLabel(node),
		FieldKey:  field.Key,
		Message:   fmt.Sprintf("Required field %q is missing or empty", label),
	}

	if !present || value == nil {
		return configError, true
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return configError, true
		}
	case []any:
		if field.Type == models.FieldTypeMultiSelect && len(v) == 0 {
			return configError, true
		}
	case []string:
		if field.Type == models.FieldTypeMultiSelect && len(v) == 0 {
			return configError, true
		}
	}

	return models.ConfigError{}, false
}

// checkConnectivity computes forward reachability from the inputs and
// backward reachability from the outputs. A node is live only when it
// appears in both sets; everything else floats. A valid input-to-output
// path can coexist with a disconnected node, so this check runs even
// when check 5 passed.
func checkConnectivity(
	g *models.Graph,
	inputs, outputs []*models.GraphNode,
	forward map[string][]string,
) (models.Verdict, bool) {
	backward := adjacency(g.Edges, true)

	reachableForward := bfs(nodeIDs(inputs), forward)
	reachableBackward := bfs(nodeIDs(outputs), backward)

	var floating []models.NodeRef

	for _, node := range g.Nodes {
		_, fwd := reachableForward[node.ID]
		_, bwd := reachableBackward[node.ID]

		if !fwd || !bwd {
			floating = append(floating, models.NodeRef{ID: node.ID, Label: nodeLabel(node)})
		}
	}

	if len(floating) == 0 {
		return models.Verdict{}, false
	}

	names := make([]string, len(floating))
	for i, ref := range floating {
		names[i] = ref.Label
	}

	return models.Verdict{
		IsValid:        false,
		CanExecute:     false,
		Message:        fmt.Sprintf("%d node(s) are not connected to the input-output flow", len(floating)),
		Details:        "Floating nodes: " + strings.Join(names, ", "),
		FloatingNodes:  floating,
		ValidationType: models.ValidationTypeConnectivity,
	}, true
}

func bfs(starts []string, adj map[string][]string) map[string]struct{} {
	visited := make(map[string]struct{}, len(starts))
	queue := make([]string, 0, len(starts))

	for _, id := range starts {
		visited[id] = struct{}{}
		queue = append(queue, id)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range adj[current] {
			if _, seen := visited[next]; seen {
				continue
			}

			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}

	return visited
}

func nodeIDs(nodes []*models.GraphNode) []string {
	ids := make([]string, len(nodes))
	for i, node := range nodes {
		ids[i] = node.ID
	}

	return ids
}

func nodeLabel(node *models.GraphNode) string {
	if node.Label != "" {
		return node.Label
	}

	return node.ID
}

func countNodes(configErrors []models.ConfigError) int {
	seen := make(map[string]struct{}, len(configErrors))
	for _, err := range configErrors {
		seen[err.NodeID] = struct{}{}
	}

	return len(seen)
}

// summarizeNodes lists each offending node once, regardless of how many
// of its fields failed.
func summarizeNodes(configErrors []models.ConfigError) string {
	seen := make(map[string]struct{}, len(configErrors))

	var names []string

	for _, err := range configErrors {
		if _, ok := seen[err.NodeID]; ok {
			continue
		}

		seen[err.NodeID] = struct{}{}
		names = append(names, err.NodeLabel)
	}

	return "Incomplete nodes: " + strings.Join(names, ", ")
}
