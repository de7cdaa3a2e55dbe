package voice

import "errors"

// Error kinds surfaced by the pipeline. Callers match them with errors.Is.
var (
	ErrAudioDecode       = errors.New("audio could not be decoded")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrModelNotLoaded    = errors.New("model not loaded")
	ErrPersistence       = errors.New("speaker database could not be persisted")
	ErrNotFound          = errors.New("not found")
)

// Sentinel labels reported in place of a prediction.
const (
	ModelNotLoadedLabel = "ModelNotLoaded"
	ErrorLabel          = "Error"
	UnknownSpeaker      = "Unknown"
)
