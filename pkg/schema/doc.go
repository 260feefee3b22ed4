// Package schema provides the payload type system attached to event descriptors.
//
// It defines built-in types (null, any, bool, int, float, string, machine),
// composites (slices, maps, positional tuples, named records) and custom validators.
// Drivers validate a payload against its event's type before enqueueing it.
//
// Basic usage:
//
//	transfer := schema.Record(schema.Schema{
//	    "amount": schema.Int(),
//	    "from":   schema.Machine(),
//	})
//
//	if err := transfer.Validate(payload); err != nil {
//	    // reject the send
//	}
//
// Simple types can also be parsed from their names:
//
//	t, err := schema.ParseType("[int]")
//
// This package has no dependencies beyond the Go standard library.
package schema
