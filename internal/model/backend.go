package model

// Backend opens runnable sessions from serialized weights.
type Backend interface {
	Open(weights []byte, meta Metadata) (Session, error)
}

// Session runs one model. Run must allocate every intermediate tensor through
// scope and must not retain input. Implementations must tolerate concurrent
// Run calls.
type Session interface {
	Run(scope *Scope, input []float32) ([]float32, error)
	Destroy() error
}
