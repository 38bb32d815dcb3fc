package memory

import "fmt"

var (
	// ErrPoolExists is returned when creating a shared memory pool whose name
	// is already registered with the manager.
	ErrPoolExists = fmt.Errorf("shared memory pool already exists")
)
