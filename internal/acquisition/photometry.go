package acquisition

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

// PhotometryData is one photometry console CSV export: a shared time
// column, demodulated analog channels, and raw digital I/O lines. All
// columns are sampled on the console's clock.
type PhotometryData struct {
	Time    []float64
	Analog  map[string][]float64
	Digital map[string][]float64
}

const timeColumn = "Time(s)"

// digitalPrefix marks digital I/O columns in the console export header.
const digitalPrefix = "DI/O"

// ReadPhotometryFile reads and parses a photometry console CSV export.
func ReadPhotometryFile(path string) (*PhotometryData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewInputError(types.CodeParseFailed,
			fmt.Sprintf("acquisition: open photometry export %s", path), err)
	}
	defer f.Close()
	return ReadPhotometry(f)
}

// ReadPhotometry parses a photometry CSV export. The first row is the
// header; the time column is required, every other column is classified as
// digital or analog by its name.
func ReadPhotometry(r io.Reader) (*PhotometryData, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, types.NewInputError(types.CodeParseFailed,
			"acquisition: read photometry header", err)
	}

	timeIdx := -1
	for i, name := range header {
		if strings.TrimSpace(name) == timeColumn {
			timeIdx = i
			break
		}
	}
	if timeIdx < 0 {
		return nil, types.NewInputError(types.CodeMissingField,
			fmt.Sprintf("acquisition: photometry export has no %q column", timeColumn), nil)
	}

	data := &PhotometryData{
		Analog:  make(map[string][]float64),
		Digital: make(map[string][]float64),
	}
	row := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, types.NewInputError(types.CodeParseFailed,
				fmt.Sprintf("acquisition: photometry row %d", row), err)
		}
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, types.NewInputError(types.CodeParseFailed,
					fmt.Sprintf("acquisition: photometry row %d column %q", row, header[i]), err)
			}
			name := strings.TrimSpace(header[i])
			switch {
			case i == timeIdx:
				data.Time = append(data.Time, v)
			case strings.HasPrefix(name, digitalPrefix):
				data.Digital[name] = append(data.Digital[name], v)
			default:
				data.Analog[name] = append(data.Analog[name], v)
			}
		}
		row++
	}
	if len(data.Time) == 0 {
		return nil, types.NewInputError(types.CodeMissingField,
			"acquisition: photometry export has no samples", nil)
	}
	return data, nil
}
