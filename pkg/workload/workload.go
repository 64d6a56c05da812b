// Package workload loads statement files and replays them through a
// profiled connection.
//
// A workload file holds one statement per line. Bound values follow the
// statement, separated by tabs; `\N` stands for NULL. Empty lines and lines
// starting with `--` are skipped.
package workload

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/pg-sharding/pgprof/pkg/proflog"
)

const nullArg = `\N`

type Query struct {
	SQL  string
	Args []any
	Line int
}

func Load(path string) ([]Query, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			proflog.Zero.Error().Err(err).Msg("failed to close workload file")
		}
	}(file)

	qs, err := Parse(file)
	if err != nil {
		return nil, errors.Wrapf(err, "load workload %s", path)
	}
	proflog.Zero.Info().
		Str("path", path).
		Int("queries", len(qs)).
		Msg("workload loaded")
	return qs, nil
}

func Parse(r io.Reader) ([]Query, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	scanner.Split(bufio.ScanLines)

	var queries []Query
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(strings.TrimSpace(text), "--") {
			continue
		}

		fields := strings.Split(text, "\t")
		q := Query{
			SQL:  strings.TrimSpace(fields[0]),
			Line: line,
		}
		for _, f := range fields[1:] {
			if f == nullArg {
				q.Args = append(q.Args, nil)
			} else {
				q.Args = append(q.Args, f)
			}
		}
		queries = append(queries, q)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return queries, nil
}
