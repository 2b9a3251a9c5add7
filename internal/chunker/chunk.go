package chunker

// Kind tells how a chunk was produced.
type Kind int

const (
	// KindRaw is a fixed-size window of a file that could not be parsed.
	KindRaw Kind = iota
	// KindFunctionOrClass is the verbatim text of one top-level definition.
	KindFunctionOrClass
	// KindSkeleton is a whole file with definition bodies elided.
	KindSkeleton
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindFunctionOrClass:
		return "function_or_class"
	case KindSkeleton:
		return "skeleton"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String. Unknown names map to KindRaw.
func ParseKind(s string) Kind {
	switch s {
	case "function_or_class":
		return KindFunctionOrClass
	case "skeleton":
		return KindSkeleton
	default:
		return KindRaw
	}
}

// Language names a parser the chunker ships. The empty Language means the
// file was not recognized.
type Language string

const (
	LangPython     Language = "python"
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangJava       Language = "java"
	LangRust       Language = "rust"
	LangNotebook   Language = "notebook"
)

// Metadata keys set on chunks.
const (
	MetaName       = "name"
	MetaNodeType   = "node_type"
	MetaStartLine  = "start_line"
	MetaEndLine    = "end_line"
	MetaChunkIndex = "chunk_index"
)

// Chunk is a unit of source content submitted for embedding and retrieval.
type Chunk struct {
	Content    string
	SourcePath string
	Language   Language
	Kind       Kind
	Metadata   map[string]string
}
