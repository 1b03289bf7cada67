package excel

// LoaderConfig selects where and how experiments are read from a sheet
type LoaderConfig struct {
	// Sheet is the worksheet read from xlsx files.
	Sheet string `json:"sheet" yaml:"sheet"`
	// Outcomes lists the columns holding outcomes. Every other column is a
	// factor of the design unless listed in Ignore.
	Outcomes []string `json:"outcomes" yaml:"outcomes"`
	// Ignore lists columns that are neither factors nor outcomes, such as
	// run identifiers.
	Ignore []string `json:"ignore" yaml:"ignore"`
}

// DefaultLoaderConfig returns sensible defaults for experiment loading
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		Sheet: "Sheet1",
	}
}
