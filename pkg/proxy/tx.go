package proxy

import (
	"database/sql/driver"
	"time"

	"github.com/pg-sharding/pgprof/pkg/proflog"
)

type tx struct {
	parent driver.Tx
	ic     *interceptor
	opened time.Time
}

var _ driver.Tx = &tx{}

func (t *tx) Commit() error {
	defer t.ic.logClosed("transaction", t.opened)
	return t.ic.observe(proflog.StmtTypeCommit, commitLabel, nil, t.parent.Commit)
}

func (t *tx) Rollback() error {
	defer t.ic.logClosed("transaction", t.opened)
	return t.ic.observe(proflog.StmtTypeRollback, rollbackLabel, nil, t.parent.Rollback)
}
