package vpn

// GenerateInput is passed unchanged from dispatch to the selected generator.
type GenerateInput struct {
	ServerName string
	IPList     []string
	CachePath  string
	Protocol   Protocol
}

// Generator is the strategy interface for protocol-specific artifact generation.
type Generator interface {
	Generate(in GenerateInput) (Result, error)
}

// ResultKind tells which variant of Result a generation produced.
type ResultKind int

const (
	// ResultCached means an artifact was written at Result.Path.
	ResultCached ResultKind = iota
	// ResultAccepted means a generator finished without producing a file.
	ResultAccepted
	// ResultDropped means an unexpected failure was reported and swallowed (best-effort mode).
	ResultDropped
)

func (k ResultKind) String() string {
	switch k {
	case ResultCached:
		return "cached"
	case ResultAccepted:
		return "accepted"
	case ResultDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Result is the outcome of a successful dispatch.
type Result struct {
	Kind ResultKind
	Path string
}

// Accepted reports whether the generator completed its work.
func (r Result) Accepted() bool {
	return r.Kind == ResultCached || r.Kind == ResultAccepted
}
