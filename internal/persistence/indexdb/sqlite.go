package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"farmhands.ai/internal/sim/farm"
	"farmhands.ai/internal/sim/tasks"
)

// SQLiteIndex is a queryable read model of the tick log. Writes are queued
// and applied by one goroutine; it never feeds back into the sim.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTickTotal atomic.Uint64
	writeErrTotal atomic.Uint64
	lostTickTotal atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota
	reqSync
)

type req struct {
	kind reqKind
	tick farm.TickLogEntry
	done chan struct{}
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTickTotal uint64 `json:"drop_tick_total"`
	// WriteErrTotal counts failed begin/insert/commit calls; LostTickTotal
	// counts the queued ticks thrown away with the batch they were in.
	WriteErrTotal uint64 `json:"write_err_total"`
	LostTickTotal uint64 `json:"lost_tick_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			tuning_digest TEXT NOT NULL,
			tuning_json TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			assigned INTEGER NOT NULL,
			completed INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS work (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			row INTEGER NOT NULL,
			col INTEGER NOT NULL,
			distance INTEGER NOT NULL,
			noop INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_work_agent_tick ON work(run_id, agent_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_work_cell_tick ON work(run_id, row, col, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteTick(entry farm.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTickTotal.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTickTotal: s.dropTickTotal.Load(),
		WriteErrTotal: s.writeErrTotal.Load(),
		LostTickTotal: s.lostTickTotal.Load(),
	}
}

// RecordRun stores the effective tuning for runID.
func (s *SQLiteIndex) RecordRun(ctx context.Context, runID, tuningDigest string, tuning any) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tuning)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs(run_id,tuning_digest,tuning_json,started_at) VALUES(?,?,?,?)`,
		runID, tuningDigest, string(b), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// CompletedByKind counts applied TASK_DONE rows for runID.
func (s *SQLiteIndex) CompletedByKind(ctx context.Context, runID string) (map[tasks.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM work WHERE run_id=? AND type=? AND noop=0 GROUP BY kind`,
		runID, farm.EventTaskDone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[tasks.Kind]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[tasks.Kind(kind)] = n
	}
	return out, rows.Err()
}

// AgentWork counts applied TASK_DONE rows per agent for runID.
func (s *SQLiteIndex) AgentWork(ctx context.Context, runID string) (map[farm.AgentID]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, COUNT(*) FROM work WHERE run_id=? AND type=? AND noop=0 GROUP BY agent_id`,
		runID, farm.EventTaskDone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[farm.AgentID]int{}
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[farm.AgentID(id)] = n
	}
	return out, rows.Err()
}

// LastTick returns the highest indexed tick for runID.
func (s *SQLiteIndex) LastTick(ctx context.Context, runID string) (uint64, bool, error) {
	var tick sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(tick) FROM ticks WHERE run_id=?`, runID).Scan(&tick); err != nil {
		return 0, false, err
	}
	if !tick.Valid {
		return 0, false, nil
	}
	return uint64(tick.Int64), true, nil
}

// Sync blocks until every entry queued before the call has been committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(run_id,tick,digest,assigned,completed) VALUES(?,?,?,?,?)`)
	insertWork, _ := s.db.Prepare(`INSERT OR REPLACE INTO work(run_id,tick,seq,type,agent_id,task_id,kind,row,col,distance,noop) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertWork != nil {
			_ = insertWork.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		batchTicks    uint64
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			s.writeErrTotal.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		batchTicks = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrTotal.Add(1)
			s.lostTickTotal.Add(batchTicks)
		}
		tx = nil
		batchTicks = 0
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeErrTotal.Add(1)
		s.lostTickTotal.Add(batchTicks)
		tx = nil
		batchTicks = 0
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			s.lostTickTotal.Add(1)
			continue
		}
		batchTicks++
		e := r.tick
		assigned, completed := 0, 0
		for _, ev := range e.Events {
			switch ev.Type {
			case farm.EventTaskAssigned:
				assigned++
			case farm.EventTaskDone:
				completed++
			}
		}
		if insertTick != nil {
			if _, err := tx.Stmt(insertTick).Exec(e.RunID, int64(e.Tick), e.Digest, assigned, completed); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		for i, ev := range e.Events {
			if insertWork == nil {
				break
			}
			if _, err := tx.Stmt(insertWork).Exec(
				e.RunID,
				int64(e.Tick),
				i,
				ev.Type,
				string(ev.AgentID),
				ev.TaskID,
				string(ev.Kind),
				ev.Row,
				ev.Col,
				ev.Distance,
				boolInt(ev.Noop),
			); err != nil {
				rollback()
				break
			}
			opCount++
		}
		flushIfNeeded()
	}
	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
