package dashboard

import (
	"fmt"

	"github.com/juank/cpa-dashboard/backend/internal/models"
)

// Overrides are display-only flag values set by hand on the table. They are
// kept apart from the rows: Apply returns copies and nothing is written back
// to the reconciled data or the store.
type Overrides struct {
	values map[string]map[string]int
}

func NewOverrides() *Overrides {
	return &Overrides{values: make(map[string]map[string]int)}
}

// OverridesFrom builds overrides from a user id -> column -> 0/1 mapping.
func OverridesFrom(m map[string]map[string]int) (*Overrides, error) {
	o := NewOverrides()
	for userID, cols := range m {
		for col, v := range cols {
			if err := o.Set(userID, col, v); err != nil {
				return nil, err
			}
		}
	}
	return o, nil
}

// Set pins a flag column of one client to v (any non-zero value means 1).
func (o *Overrides) Set(userID, col string, v int) error {
	if !models.IsFlagColumn(col) {
		return fmt.Errorf("column %q is not a flag", col)
	}
	if v != 0 {
		v = 1
	}
	if o.values[userID] == nil {
		o.values[userID] = make(map[string]int)
	}
	o.values[userID][col] = v
	return nil
}

// Toggle flips the displayed value of a flag for row and returns the new one.
func (o *Overrides) Toggle(row models.Row, col string) (int, error) {
	current, ok := row.Flag(col)
	if !ok {
		return 0, fmt.Errorf("column %q is not a flag", col)
	}
	if v, ok := o.values[row.UserID][col]; ok {
		current = v
	}
	next := 1
	if current != 0 {
		next = 0
	}
	return next, o.Set(row.UserID, col, next)
}

// Get returns the override for one flag, if any.
func (o *Overrides) Get(userID, col string) (int, bool) {
	v, ok := o.values[userID][col]
	return v, ok
}

// Len is the number of overridden cells.
func (o *Overrides) Len() int {
	n := 0
	for _, cols := range o.values {
		n += len(cols)
	}
	return n
}

// Reset drops every override.
func (o *Overrides) Reset() {
	o.values = make(map[string]map[string]int)
}

// Apply returns rows with the overrides laid over them. rows is not modified.
func (o *Overrides) Apply(rows []models.Row) []models.Row {
	out := make([]models.Row, len(rows))
	for i, r := range rows {
		for col, v := range o.values[r.UserID] {
			r = r.WithFlag(col, v)
		}
		out[i] = r
	}
	return out
}
