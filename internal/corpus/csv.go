package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/poll-blend/internal/models"
)

var standardColumns = []string{
	"election_id",
	"time_to_election",
	"fundamentals_prediction",
	"polling_average",
	"actual_outcome",
}

var rawColumns = []string{
	"election_id",
	"model_date",
	"election_date",
	"incumbent_pct",
	"challenger_pct",
	"fundamentals_prediction",
	"actual_outcome",
}

// dateLayouts are tried in order for raw-format dates.
var dateLayouts = []string{"2006-01-02", "1/2/2006", "01/02/2006", "2006/01/02"}

// Parse reads a corpus in the given format. Columns are matched by header
// name, so their order does not matter and extra columns are ignored.
// Lines starting with '#' are comments.
func Parse(r io.Reader, format Format) ([]models.Observation, error) {
	var required []string
	switch format {
	case FormatStandard, "":
		format = FormatStandard
		required = standardColumns
	case FormatRaw:
		required = rawColumns
	default:
		return nil, fmt.Errorf("%w: unknown corpus format %q", models.ErrInvalidInput, format)
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: corpus is empty", models.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols, err := columnIndex(header, required)
	if err != nil {
		return nil, err
	}

	var out []models.Observation
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
		line, _ := reader.FieldPos(0)

		var o models.Observation
		if format == FormatRaw {
			o, err = parseRaw(record, cols)
		} else {
			o, err = parseStandard(record, cols)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func columnIndex(header []string, required []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: corpus header is missing columns %s", models.ErrInvalidInput, strings.Join(missing, ", "))
	}
	return cols, nil
}

type row struct {
	record []string
	cols   map[string]int
	err    error
}

func (r *row) text(name string) string {
	i := r.cols[name]
	if i >= len(r.record) {
		if r.err == nil {
			r.err = fmt.Errorf("%w: missing value for %s", models.ErrInvalidInput, name)
		}
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r *row) float(name string) float64 {
	s := r.text(name)
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.err = fmt.Errorf("%w: %s %q is not a number", models.ErrInvalidInput, name, s)
		return 0
	}
	return v
}

func (r *row) date(name string) time.Time {
	s := r.text(name)
	if r.err != nil {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d
		}
	}
	r.err = fmt.Errorf("%w: %s %q is not a date", models.ErrInvalidInput, name, s)
	return time.Time{}
}

func parseStandard(record []string, cols map[string]int) (models.Observation, error) {
	r := &row{record: record, cols: cols}
	o := models.Observation{
		ElectionID:             r.text("election_id"),
		TimeToElection:         r.float("time_to_election"),
		FundamentalsPrediction: r.float("fundamentals_prediction"),
		PollingAverage:         r.float("polling_average"),
		ActualOutcome:          r.float("actual_outcome"),
	}
	return o, r.err
}

func parseRaw(record []string, cols map[string]int) (models.Observation, error) {
	r := &row{record: record, cols: cols}
	id := r.text("election_id")
	modelDate := r.date("model_date")
	electionDate := r.date("election_date")
	incumbent := r.float("incumbent_pct")
	challenger := r.float("challenger_pct")
	fundamentals := r.float("fundamentals_prediction")
	actual := r.float("actual_outcome")
	if r.err != nil {
		return models.Observation{}, r.err
	}

	share, err := TwoPartyShare(incumbent, challenger)
	if err != nil {
		return models.Observation{}, err
	}
	return models.Observation{
		ElectionID:             id,
		TimeToElection:         DaysToElection(modelDate, electionDate),
		FundamentalsPrediction: asFraction(fundamentals),
		PollingAverage:         share,
		ActualOutcome:          asFraction(actual),
	}, nil
}

// TwoPartyShare returns the incumbent's share of the two-candidate total.
// The inputs may be percentages or fractions as long as both use the same
// scale.
func TwoPartyShare(incumbent, challenger float64) (float64, error) {
	if incumbent < 0 || challenger < 0 || !(incumbent+challenger > 0) {
		return 0, fmt.Errorf("%w: cannot form a two-party share from %g and %g", models.ErrInvalidInput, incumbent, challenger)
	}
	return incumbent / (incumbent + challenger), nil
}

// DaysToElection returns the whole number of days from modelDate to
// electionDate. It is negative when modelDate is after the election.
func DaysToElection(modelDate, electionDate time.Time) float64 {
	return math.Round(electionDate.Sub(modelDate).Hours() / 24)
}

// asFraction reads values above 1 as percentages.
func asFraction(v float64) float64 {
	if v > 1 {
		return v / 100
	}
	return v
}

// Write emits obs in the standard format. Numbers are written with the
// fewest digits that parse back to the same value.
func Write(w io.Writer, obs []models.Observation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(standardColumns); err != nil {
		return err
	}
	for _, o := range obs {
		if err := cw.Write([]string{
			o.ElectionID,
			strconv.FormatFloat(o.TimeToElection, 'g', -1, 64),
			strconv.FormatFloat(o.FundamentalsPrediction, 'g', -1, 64),
			strconv.FormatFloat(o.PollingAverage, 'g', -1, 64),
			strconv.FormatFloat(o.ActualOutcome, 'g', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
