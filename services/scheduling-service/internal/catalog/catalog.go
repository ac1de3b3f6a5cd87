// Package catalog holds the static registry of appointment types. It is
// built once at process start and read-only afterwards, so lookups need no
// locking.
package catalog

import (
	"errors"
	"fmt"
)

var ErrTypeNotFound = errors.New("appointment type not found")

type Catalog struct {
	types []AppointmentType
	byID  map[string]AppointmentType
}

// New validates every entry and rejects duplicates. Declaration order is
// preserved: ListEligible returns types in the order they were declared,
// which drives presentation order downstream.
func New(types []AppointmentType) (*Catalog, error) {
	if len(types) == 0 {
		return nil, errors.New("catalog must contain at least one appointment type")
	}
	byID := make(map[string]AppointmentType, len(types))
	for _, t := range types {
		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("invalid appointment type: %w", err)
		}
		if _, dup := byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate appointment type id %q", t.ID)
		}
		byID[t.ID] = t
	}
	return &Catalog{types: types, byID: byID}, nil
}

func (c *Catalog) GetType(id string) (AppointmentType, error) {
	t, ok := c.byID[id]
	if !ok {
		return AppointmentType{}, fmt.Errorf("%w: %s", ErrTypeNotFound, id)
	}
	return t, nil
}

func (c *Catalog) ListEligible(p Persona) []AppointmentType {
	var out []AppointmentType
	for _, t := range c.types {
		if t.EligibleFor(p) {
			out = append(out, t)
		}
	}
	return out
}
