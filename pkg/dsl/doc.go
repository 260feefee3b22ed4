/*
Package dsl provides a fluent builder for machine definitions.

Generated code can construct runtime states directly; the builder is for
hand-written programs and tests. Build validates the result, fills in the
null-transition flag and uses a no-op handler for gotos without one.

Example usage:

	ping := domain.MustEvent("ping", nil, 1, false)

	b := dsl.New("Pinger")
	b.Add("Idle").
		Entry(greet).
		Defer(pong).
		Goto(ping, "Done")
	b.Add("Done").
		Cold()

	def, err := b.Build()
	// ... register def with a registry.Registry and run it with a driver
*/
package dsl
