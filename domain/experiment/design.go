// Package experiment holds the data model of a scored experiment: the
// design of uncertain factors, the measured outcomes, the outcome
// specification and the ranked scores produced from them.
package experiment

import (
	"fmt"
)

// Column is one uncertain factor of an experiment design, one value per run.
// Values may be numeric or categorical (any comparable value).
type Column struct {
	Name   string `json:"name"`
	Values []any  `json:"values"`
}

// Design is an ordered collection of named factor columns.
// Column order is preserved and defines factor identity in rankings.
type Design struct {
	Columns []Column `json:"columns"`
}

// NewDesign builds a design from columns in the given order.
func NewDesign(columns ...Column) Design {
	return Design{Columns: columns}
}

// FromMap builds a design from a name->values map using order for column
// order. Names in order that are missing from columns are skipped.
func FromMap(columns map[string][]any, order []string) Design {
	d := Design{Columns: make([]Column, 0, len(order))}
	for _, name := range order {
		values, ok := columns[name]
		if !ok {
			continue
		}
		d.Columns = append(d.Columns, Column{Name: name, Values: values})
	}
	return d
}

// Factors returns the factor names in column order.
func (d Design) Factors() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Runs returns the number of runs (rows). It is the length of the first
// column; an empty design has zero runs.
func (d Design) Runs() int {
	if len(d.Columns) == 0 {
		return 0
	}
	return len(d.Columns[0].Values)
}

// Column returns the column with the given name.
func (d Design) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Validate checks that column names are unique and non-empty and that all
// columns have the same number of runs.
func (d Design) Validate() error {
	seen := make(map[string]bool, len(d.Columns))
	runs := d.Runs()
	for i, c := range d.Columns {
		if c.Name == "" {
			return fmt.Errorf("column %d has no name", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		if len(c.Values) != runs {
			return fmt.Errorf("column %q has %d runs, expected %d", c.Name, len(c.Values), runs)
		}
	}
	return nil
}

// Outcomes maps an outcome name to one measured value per run.
type Outcomes map[string][]float64

// Names returns the outcome names. Map order is not stable, callers that
// need a stable order should sort.
func (o Outcomes) Names() []string {
	names := make([]string, 0, len(o))
	for k := range o {
		names = append(names, k)
	}
	return names
}

// Results pairs an experiment design with the outcomes of its runs.
type Results struct {
	Design   Design
	Outcomes Outcomes
}
