package events

// legacyAliases maps flat legacy type strings onto canonical kinds.
// Executors predating the unified {type, subtype} envelope still emit
// these; the table must be kept exactly in sync with them.
var legacyAliases = map[string]Kind{
	"execution_started":  {LevelRun, SubtypeStart},
	"execution_start":    {LevelRun, SubtypeStart},
	"execution_progress": {LevelRun, SubtypeProgress},
	"execution_end":      {LevelRun, SubtypeEnd},
	"execution_error":    {LevelRun, SubtypeError},

	"node_start":    {LevelStage, SubtypeStart},
	"node_progress": {LevelStage, SubtypeProgress},
	"node_end":      {LevelStage, SubtypeEnd},
	"node_error":    {LevelStage, SubtypeError},

	"tool_start":    {LevelSubTask, SubtypeStart},
	"tool_progress": {LevelSubTask, SubtypeProgress},
	"tool_end":      {LevelSubTask, SubtypeEnd},
	"tool_error":    {LevelSubTask, SubtypeError},

	"llm_start": {LevelTokenStream, SubtypeStart},
	"llm_token": {LevelTokenStream, SubtypeToken},
	"llm_end":   {LevelTokenStream, SubtypeEnd},
	"llm_error": {LevelTokenStream, SubtypeError},

	// Older agent executors emitted thinking traffic under their own
	// names; all of them are token-stream tokens.
	"agent_thinking":              {LevelTokenStream, SubtypeToken},
	"sentiment_analysis_progress": {LevelTokenStream, SubtypeToken},
	"insight_thinking":            {LevelTokenStream, SubtypeToken},

	"agent_action": {LevelAgent, SubtypeAction},
	"agent_finish": {LevelAgent, SubtypeFinish},
}

// LegacyKind resolves a flat legacy type string to its canonical kind.
func LegacyKind(legacyType string) (Kind, bool) {
	k, ok := legacyAliases[legacyType]

	return k, ok
}
