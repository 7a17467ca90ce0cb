package pipeline

// Transform URNs. Like coder URNs, these are part of the wire contract
// between graph construction and bundle execution.
const (
	ImpulseURN    = "joist:transform:impulse:v1"
	CreateURN     = "joist:transform:create:v1"
	ParDoURN      = "joist:transform:pardo:v1"
	GroupByKeyURN = "joist:transform:group_by_key:v1"
	FlattenURN    = "joist:transform:flatten:v1"

	// RecordingURN marks the instrumentation operator used by worker tests
	// to observe bundle lifecycle ordering.
	RecordingURN = "joist:transform:recording:v1"

	GlobalWindowFnURN     = "joist:window_fn:global:v1"
	DefaultEnvironmentURN = "joist:environment:process:v1"

	GlobalWindowingStrategyID = "global"
	DefaultEnvironmentID      = "process"
)
