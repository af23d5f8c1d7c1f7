package mover

import "encoding/json"

// DefaultIndexFileName is the barrel file synthesized after batch moves.
const DefaultIndexFileName = "index.ts"

// MoveItem is one relocation.
type MoveItem struct {
	SourcePath string `json:"source"`
	TargetPath string `json:"target"`
	IsDir      bool   `json:"is_dir"`
}

// FileFailure is a file whose rewrite could not be computed or persisted,
// or an index file that could not be written.
type FileFailure struct {
	Path  string
	Phase Phase
	Err   error
}

// MarshalJSON renders the phase and the error as text.
func (f FileFailure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Path  string `json:"path"`
		Phase string `json:"phase"`
		Error string `json:"error"`
	}{f.Path, f.Phase.String(), f.Err.Error()})
}

// Result reports what a move changed.
type Result struct {
	// Moved lists the relocations that were carried out.
	Moved []MoveItem `json:"moved"`

	// Rewritten lists files whose text was changed, by path at write time.
	Rewritten []string `json:"rewritten"`

	// Created lists synthesized index files.
	Created []string `json:"created,omitempty"`

	// Failed lists files left untouched because their rewrite failed.
	Failed []FileFailure `json:"failed,omitempty"`
}

func (r *Result) merge(other *Result) {
	if other == nil {
		return
	}
	r.Moved = append(r.Moved, other.Moved...)
	r.Rewritten = append(r.Rewritten, other.Rewritten...)
	r.Created = append(r.Created, other.Created...)
	r.Failed = append(r.Failed, other.Failed...)
}

// Options configures a Coordinator.
type Options struct {
	// SynthesizeIndex writes an index file next to every batch target that
	// lacks one.
	SynthesizeIndex bool

	// IndexFileName defaults to DefaultIndexFileName.
	IndexFileName string
}

// DefaultOptions returns the coordinator defaults.
func DefaultOptions() Options {
	return Options{IndexFileName: DefaultIndexFileName}
}
