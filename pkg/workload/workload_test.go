package workload_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pg-sharding/pgprof/pkg/workload"
)

func TestParse(t *testing.T) {
	assert := assert.New(t)
	in := strings.Join([]string{
		"-- warmup",
		"SELECT 1",
		"",
		"SELECT * FROM t WHERE a = $1 AND b = $2\t42\t\\N",
		"UPDATE t SET name = $1\tJames Smith\r",
	}, "\n")

	qs, err := workload.Parse(strings.NewReader(in))
	assert.NoError(err)
	assert.Equal([]workload.Query{
		{SQL: "SELECT 1", Line: 2},
		{SQL: "SELECT * FROM t WHERE a = $1 AND b = $2", Args: []any{"42", nil}, Line: 4},
		{SQL: "UPDATE t SET name = $1", Args: []any{"James Smith"}, Line: 5},
	}, qs)
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "w.txt")
	require.NoError(t, os.WriteFile(p, []byte("SELECT 1\nSELECT 2\n"), 0o600))

	qs, err := workload.Load(p)
	assert.NoError(t, err)
	assert.Len(t, qs, 2)

	_, err = workload.Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

type countingRunner struct {
	mu   sync.Mutex
	seen map[string]int
	fail string
}

func (r *countingRunner) Run(_ context.Context, q workload.Query) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[q.SQL]++
	if q.SQL == r.fail {
		return errors.New("boom")
	}
	return nil
}

func TestReplay(t *testing.T) {
	assert := assert.New(t)
	r := &countingRunner{seen: map[string]int{}, fail: "SELECT 2"}
	qs := []workload.Query{{SQL: "SELECT 1"}, {SQL: "SELECT 2"}, {SQL: "SELECT 3"}}

	res, err := workload.Replay(context.Background(), r, qs, 4, 3, nil)
	assert.NoError(err)
	assert.Equal(int64(6), res.Executed)
	assert.Equal(int64(3), res.Failed)
	assert.Equal(map[string]int{"SELECT 1": 3, "SELECT 2": 3, "SELECT 3": 3}, r.seen)
}

func TestReplayCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &countingRunner{seen: map[string]int{}}
	_, err := workload.Replay(ctx, r, []workload.Query{{SQL: "SELECT 1"}}, 1, 10, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
