package excel

// Table is a sheet read as trimmed strings: one header row and the data
// rows beneath it, each padded to the header width.
type Table struct {
	Headers []string   // Column headers
	Rows    [][]string // Data rows
}

// Column returns the index of a header.
func (t *Table) Column(name string) (int, bool) {
	for i, h := range t.Headers {
		if h == name {
			return i, true
		}
	}
	return -1, false
}
