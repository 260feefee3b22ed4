package ports

import "github.com/aretw0/prt/pkg/domain"

// Inspector exposes the machines of a live run for introspection.
type Inspector interface {
	// Machines returns a record of every machine, in creation order.
	Machines() []domain.MachineRecord
	// Machine returns the record of one machine or domain.ErrMachineNotFound.
	Machine(id domain.MachineID) (domain.MachineRecord, error)
}
