package excel

import (
	"strconv"

	"gofactor/domain/experiment"
	"gofactor/internal"
	apperrors "gofactor/internal/errors"
)

// Loader reads experiment designs and outcomes from spreadsheets. Each
// column is a factor or an outcome, each row one run.
type Loader struct {
	config LoaderConfig
	logger *internal.Logger
}

// NewLoader creates a loader
func NewLoader(config LoaderConfig, logger *internal.Logger) *Loader {
	if config.Sheet == "" {
		config.Sheet = DefaultLoaderConfig().Sheet
	}
	return &Loader{config: config, logger: logger}
}

// LoadExperiment reads factors and outcomes from one file. The configured
// outcome columns become outcomes and every remaining column a factor.
func (l *Loader) LoadExperiment(path string) (experiment.Results, error) {
	if len(l.config.Outcomes) == 0 {
		return experiment.Results{}, apperrors.InvalidArgument("no outcome columns configured")
	}
	table, err := l.read(path)
	if err != nil {
		return experiment.Results{}, err
	}
	design, err := l.design(table)
	if err != nil {
		return experiment.Results{}, err
	}
	outcomes, err := l.outcomes(table, l.config.Outcomes)
	if err != nil {
		return experiment.Results{}, err
	}
	return experiment.Results{Design: design, Outcomes: outcomes}, nil
}

// LoadDesign reads a design. Configured outcome and ignored columns are
// skipped. Cells stay strings; the encoder decides whether a column is
// numeric.
func (l *Loader) LoadDesign(path string) (experiment.Design, error) {
	table, err := l.read(path)
	if err != nil {
		return experiment.Design{}, err
	}
	return l.design(table)
}

// LoadOutcomes reads outcomes from a file of numeric columns. With no
// configured outcome columns, every column not ignored is an outcome.
func (l *Loader) LoadOutcomes(path string) (experiment.Outcomes, error) {
	table, err := l.read(path)
	if err != nil {
		return nil, err
	}
	names := l.config.Outcomes
	if len(names) == 0 {
		ignored := toSet(l.config.Ignore)
		for _, h := range table.Headers {
			if !ignored[h] {
				names = append(names, h)
			}
		}
	}
	return l.outcomes(table, names)
}

func (l *Loader) read(path string) (*Table, error) {
	table, err := NewDataReader(path, l.config.Sheet, l.logger).ReadTable()
	if err != nil {
		return nil, &apperrors.AppError{Code: apperrors.CodeInvalidArgument, Message: "cannot read " + path, Cause: err}
	}
	seen := make(map[string]bool, len(table.Headers))
	for i, h := range table.Headers {
		if h == "" {
			return nil, apperrors.InvalidArgumentf("%s: column %d has no header", path, i+1)
		}
		if seen[h] {
			return nil, apperrors.InvalidArgumentf("%s: duplicate column %q", path, h)
		}
		seen[h] = true
	}
	return table, nil
}

func (l *Loader) design(table *Table) (experiment.Design, error) {
	skip := toSet(l.config.Ignore)
	for _, name := range l.config.Outcomes {
		skip[name] = true
	}
	var columns []experiment.Column
	for j, h := range table.Headers {
		if skip[h] {
			continue
		}
		values := make([]any, len(table.Rows))
		for i, row := range table.Rows {
			values[i] = row[j]
		}
		columns = append(columns, experiment.Column{Name: h, Values: values})
	}
	if len(columns) == 0 {
		return experiment.Design{}, apperrors.InvalidArgument("no factor columns")
	}
	return experiment.NewDesign(columns...), nil
}

func (l *Loader) outcomes(table *Table, names []string) (experiment.Outcomes, error) {
	outcomes := make(experiment.Outcomes, len(names))
	for _, name := range names {
		j, ok := table.Column(name)
		if !ok {
			return nil, apperrors.InvalidArgumentf("outcome column %q not found", name)
		}
		values := make([]float64, len(table.Rows))
		for i, row := range table.Rows {
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				return nil, apperrors.InvalidArgumentf("outcome %q row %d: %q is not a number", name, i+2, row[j])
			}
			values[i] = v
		}
		outcomes[name] = values
	}
	return outcomes, nil
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
