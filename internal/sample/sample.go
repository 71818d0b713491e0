package sample

// Sample is one stored unit of training data.
//
// Path doubles as the stable sort key. ID is the capture-time identifier
// ("sample_id" in metadata); legacy samples have no ID and are identified
// by path alone.
type Sample struct {
	ID       string
	Path     string
	Sequence Array
	ClassIdx *int
	Meta     map[string]any
	Source   Metadata
}

// SampleIDKey is the metadata field holding the capture-time identifier.
const SampleIDKey = "sample_id"

// New assembles a Sample from a decoded sequence and its resolved metadata origin.
func New(path string, seq Array, src Metadata) Sample {
	meta := src.Fields()
	return Sample{
		ID:       StringField(meta, SampleIDKey),
		Path:     path,
		Sequence: seq,
		ClassIdx: ClassIndex(meta),
		Meta:     meta,
		Source:   src,
	}
}
