package coders

// Coder URNs recorded in pipeline graphs. A worker reconstructs coders from
// these identifiers plus component coder ids, so the constants are part of
// the wire contract and must not change between releases.
const (
	BytesCoderURN    = "joist:coder:bytes:v1"
	StringCoderURN   = "joist:coder:string_utf8:v1"
	VarIntCoderURN   = "joist:coder:varint:v1"
	BoolCoderURN     = "joist:coder:bool:v1"
	DoubleCoderURN   = "joist:coder:double:v1"
	KVCoderURN       = "joist:coder:kv:v1"
	IterableCoderURN = "joist:coder:iterable:v1"
	NullableCoderURN = "joist:coder:nullable:v1"
	UnitCoderURN     = "joist:coder:unit:v1"
	JSONCoderURN     = "joist:coder:json:v1"
	GzipCoderURN     = "joist:coder:gzip:v1"

	// CustomCoderURNPrefix prefixes URNs of application-registered coders.
	CustomCoderURNPrefix = "joist:coder:custom:v1:"
)
