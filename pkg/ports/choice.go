package ports

// ChoiceSource supplies the decisions a driver cannot make on its own.
// Implementations need not be safe for concurrent use: each run owns one.
type ChoiceSource interface {
	// Choose returns an index in [0, n) selecting which enabled machine steps next.
	Choose(n int) int
	// Bool resolves a nondeterministic choice.
	Bool() bool
}
