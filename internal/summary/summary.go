// Package summary post-processes finished sample files. It runs after a
// benchmark, never during one.
package summary

import (
	"bufio"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/pkg/errors"
)

// FileName is the summary written next to the sample files.
const FileName = "summary.txt"

// SampleExt is the extension of sample files.
const SampleExt = ".csv"

// Histogram range in nanoseconds.
const (
	histogramMin     = 1
	histogramMax     = int64(time.Hour)
	histogramSigFigs = 3
)

// Stats describes one sample file. Percentiles are accurate to three
// significant digits; Count and Total are exact.
type Stats struct {
	Name  string
	Count int64
	Total time.Duration
	Mean  time.Duration
	P50   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// Read summarizes samples, one nanosecond value per line. Blank lines are
// ignored; fractional values are truncated.
func Read(name string, r io.Reader) (Stats, error) {
	st := Stats{Name: name}
	hist := hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		ns, err := parseSample(text)
		if err != nil {
			return st, errors.Wrapf(err, "%s line %d", name, line)
		}

		st.Count++
		st.Total += time.Duration(ns)
		if time.Duration(ns) > st.Max {
			st.Max = time.Duration(ns)
		}
		if err := hist.RecordValue(min(max(ns, histogramMin), histogramMax)); err != nil {
			return st, errors.Wrapf(err, "%s line %d", name, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return st, errors.Wrapf(err, "read %s", name)
	}

	if st.Count > 0 {
		st.Mean = st.Total / time.Duration(st.Count)
		st.P50 = time.Duration(hist.ValueAtQuantile(50))
		st.P99 = time.Duration(hist.ValueAtQuantile(99))
	}
	return st, nil
}

func parseSample(text string) (int64, error) {
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > math.MaxInt64 {
		return 0, errors.Errorf("invalid sample %q", text)
	}
	return int64(f), nil
}

// ReadFile summarizes one sample file, named after its base name.
func ReadFile(path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, errors.Wrap(err, "open sample file")
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Read(name, f)
}

// ReadDir summarizes every sample file in dir, sorted by name.
func ReadDir(dir string) ([]Stats, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+SampleExt))
	if err != nil {
		return nil, errors.Wrap(err, "list sample files")
	}
	sort.Strings(paths)

	out := make([]Stats, 0, len(paths))
	for _, p := range paths {
		st, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

var header = []string{"name", "count", "total_seconds", "mean_seconds", "p50_seconds", "p99_seconds", "max_seconds"}

// Write renders stats as CSV. Statistics of an empty file are left blank.
func Write(w io.Writer, stats []Stats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, st := range stats {
		record := []string{st.Name, strconv.FormatInt(st.Count, 10), seconds(st.Total), "", "", "", ""}
		if st.Count > 0 {
			record[3], record[4], record[5], record[6] = seconds(st.Mean), seconds(st.P50), seconds(st.P99), seconds(st.Max)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// WriteDir regenerates the summary file of dir from its sample files. The
// file is replaced atomically.
func WriteDir(dir string) ([]Stats, error) {
	stats, err := ReadDir(dir)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(dir, FileName+".*.tmp")
	if err != nil {
		return nil, errors.Wrap(err, "create summary")
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, stats); err != nil {
		tmp.Close()
		return nil, errors.Wrap(err, "write summary")
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.Wrap(err, "write summary")
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, FileName)); err != nil {
		return nil, errors.Wrap(err, "replace summary")
	}
	return stats, nil
}
