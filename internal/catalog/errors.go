package catalog

import (
	"errors"
	"fmt"

	"clipspace/internal/extern"
)

// ErrDuplicateID indicates an insert with an id that already exists.
var ErrDuplicateID = errors.New("duplicate item id")

// ErrSystemSpace indicates an attempt to delete a system space.
var ErrSystemSpace = errors.New("system spaces cannot be deleted")

// ErrJobExists indicates a live job already covers the (item, kind) pair.
var ErrJobExists = errors.New("job already scheduled")

func itemNotFound(id string) error {
	return fmt.Errorf("%w: item %s", extern.ErrNotFound, id)
}

func spaceNotFound(id string) error {
	return fmt.Errorf("%w: space %s", extern.ErrNotFound, id)
}

func jobNotFound(id int64) error {
	return fmt.Errorf("%w: job %d", extern.ErrNotFound, id)
}

// IsNotFound reports whether err represents a missing item or space.
func IsNotFound(err error) bool {
	return errors.Is(err, extern.ErrNotFound)
}
