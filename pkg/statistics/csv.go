package statistics

import (
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/pg-sharding/pgprof/pkg/models/proferror"
	"github.com/pg-sharding/pgprof/pkg/monitor"
	"github.com/pg-sharding/pgprof/pkg/redact"
)

// Header is the first line of every export file.
var Header = []string{"Label", "Units", "Hits", "Avg", "Total", "Min", "Max"}

func formatMillis(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteStats writes stats as CSV in the given order. Labels are redacted;
// everything else is written as is.
func WriteStats(w io.Writer, stats []monitor.Stat) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, st := range stats {
		units := st.Units
		if units == "" {
			units = monitor.Units
		}
		rec := []string{
			redact.SQL(st.Label),
			units,
			strconv.FormatInt(st.Hits, 10),
			formatMillis(st.Avg()),
			formatMillis(st.TotalMillis()),
			formatMillis(st.MinMillis()),
			formatMillis(st.MaxMillis()),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadStats parses an export. The avg column is ignored and recomputed from
// total and hits.
func ReadStats(r io.Reader) ([]monitor.Stat, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, malformed(err)
	}
	for i, h := range head {
		if !strings.EqualFold(strings.TrimSpace(h), Header[i]) {
			return nil, proferror.Newf(proferror.PROF_MALFORMED_EXPORT, "unexpected header column %q", h)
		}
	}

	var stats []monitor.Stat
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return nil, malformed(err)
		}
		line, _ := cr.FieldPos(0)
		st, err := parseRecord(rec)
		if err != nil {
			return nil, proferror.Newf(proferror.PROF_MALFORMED_EXPORT, "line %d: %s", line, err)
		}
		stats = append(stats, st)
	}
}

func malformed(err error) error {
	return &proferror.ProfError{Err: err, ErrorCode: proferror.PROF_MALFORMED_EXPORT}
}

func parseRecord(rec []string) (monitor.Stat, error) {
	hits, err := strconv.ParseInt(rec[2], 10, 64)
	if err != nil || hits < 0 {
		return monitor.Stat{}, errors.Errorf("bad hits %q", rec[2])
	}
	var ms [3]float64
	for i, col := range rec[4:] {
		v, err := strconv.ParseFloat(col, 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return monitor.Stat{}, errors.Errorf("bad duration %q in column %s", col, Header[4+i])
		}
		ms[i] = v
	}
	return monitor.Stat{
		Label: rec[0],
		Units: rec[1],
		Hits:  hits,
		Total: monitor.FromMillis(ms[0]),
		Min:   monitor.FromMillis(ms[1]),
		Max:   monitor.FromMillis(ms[2]),
	}, nil
}

// ToCSV renders the sorted snapshot.
func (r *Reporter) ToCSV() (string, error) {
	var buf bytes.Buffer
	if err := r.WriteCSV(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *Reporter) WriteCSV(w io.Writer) error {
	return WriteStats(w, r.SortedSnapshot())
}

// ReadCSV merges an export into the store: counts for labels already
// present are added to, unknown labels are created.
func (r *Reporter) ReadCSV(rd io.Reader) error {
	stats, err := ReadStats(rd)
	if err != nil {
		return err
	}
	for _, st := range stats {
		r.store.Merge(st)
	}
	return nil
}

// Import merges the export file at path into the store.
func (r *Reporter) Import(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open export")
	}
	defer f.Close()

	if err := r.ReadCSV(f); err != nil {
		return errors.Wrapf(err, "import %s", path)
	}
	r.logger.Info().Str("path", path).Int("monitors", r.store.Len()).Msg("statistics imported")
	return nil
}

// Export writes the sorted snapshot to path. With merge set, counts already
// in the file are added to the live ones first; the live store is not
// modified. The file is replaced atomically.
func (r *Reporter) Export(path string, merge bool) error {
	if path == "" {
		return proferror.New(proferror.PROF_UNEXPECTED, "export path is not configured")
	}

	stats := r.SortedSnapshot()
	if merge {
		prev, err := readFile(path)
		if err != nil {
			return err
		}
		stats = MergeStats(stats, prev)
	}

	if err := writeFileAtomic(path, stats); err != nil {
		return err
	}
	r.logger.Info().Str("path", path).Int("rows", len(stats)).Bool("merged", merge).Msg("statistics exported")
	return nil
}

func readFile(path string) ([]monitor.Stat, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open previous export")
	}
	defer f.Close()

	stats, err := ReadStats(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read previous export %s", path)
	}
	return stats, nil
}

func writeFileAtomic(path string, stats []monitor.Stat) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create export")
	}
	defer os.Remove(tmp.Name())

	if err := WriteStats(tmp, stats); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write export")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close export")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "replace export")
}

// MergeStats combines the given lists by redacted label and returns the
// result sorted by total time.
func MergeStats(lists ...[]monitor.Stat) []monitor.Stat {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	if n == 0 {
		return nil
	}
	store, err := monitor.NewStore(n)
	if err != nil {
		return nil
	}
	for _, l := range lists {
		for _, st := range l {
			st.Label = redact.SQL(st.Label)
			store.Merge(st)
		}
	}
	return store.Snapshot()
}
