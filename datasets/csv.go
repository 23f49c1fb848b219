package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	scigoerrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/pkg/log"
)

// Loader loads the splits of one named dataset.
type Loader interface {
	Name() string
	Load(split Split) (*Dataset, error)
}

// CSVLoader reads <Dir>/<Name>/<split>.csv with a header row.
type CSVLoader struct {
	name        string
	dir         string
	textColumn  string
	labelColumn string
	logger      log.Logger
}

// CSVOption configures a CSVLoader.
type CSVOption func(*CSVLoader)

// WithColumns sets the text and label column names.
func WithColumns(text, label string) CSVOption {
	return func(l *CSVLoader) {
		l.textColumn = text
		l.labelColumn = label
	}
}

// NewCSVLoader creates a loader for dataset name under dir.
// The default columns are "comment" and "toxic".
func NewCSVLoader(name, dir string, opts ...CSVOption) *CSVLoader {
	l := &CSVLoader{
		name:        name,
		dir:         dir,
		textColumn:  "comment",
		labelColumn: "toxic",
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = log.GetLoggerWithName("datasets").With(log.DatasetNameKey, name)
	return l
}

// Name implements Loader.
func (l *CSVLoader) Name() string { return l.name }

// Path returns the CSV path of split.
func (l *CSVLoader) Path(split Split) string {
	return filepath.Join(l.dir, l.name, string(split)+".csv")
}

// Load implements Loader. A missing file is a NotFoundError.
func (l *CSVLoader) Load(split Split) (*Dataset, error) {
	if !split.Valid() {
		return nil, scigoerrors.NewValidationError("split", "must be train or test", split)
	}
	path := l.Path(split)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, scigoerrors.NewNotFoundError("dataset split", l.name+"/"+string(split))
		}
		return nil, scigoerrors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	ds, err := l.read(f)
	if err != nil {
		return nil, scigoerrors.Wrapf(err, "read %s", path)
	}
	l.logger.Debug("Dataset split loaded", log.SplitKey, string(split), log.SamplesKey, ds.Len())
	return ds, nil
}

func (l *CSVLoader) read(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, scigoerrors.NewValueError("CSVLoader.Load", "missing header row")
		}
		return nil, err
	}
	textIdx, labelIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case l.textColumn:
			textIdx = i
		case l.labelColumn:
			labelIdx = i
		}
	}
	if textIdx < 0 || labelIdx < 0 {
		return nil, scigoerrors.NewValueError("CSVLoader.Load",
			fmt.Sprintf("header must contain %q and %q", l.textColumn, l.labelColumn))
	}

	var texts []string
	var labels []int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		if textIdx >= len(record) || labelIdx >= len(record) {
			return nil, scigoerrors.NewValueError("CSVLoader.Load", fmt.Sprintf("line %d: too few fields", line))
		}
		label, err := parseLabel(record[labelIdx])
		if err != nil {
			return nil, scigoerrors.NewValueError("CSVLoader.Load", fmt.Sprintf("line %d: %v", line, err))
		}
		texts = append(texts, record[textIdx])
		labels = append(labels, label)
	}
	return NewDataset(l.name, NewData(texts), NewTargets(labels))
}

// parseLabel accepts integers and integral floats such as "1.0".
func parseLabel(s string) (int, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, fmt.Errorf("label %q is not an integer", s)
	}
	return int(f), nil
}
