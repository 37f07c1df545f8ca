package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"farmhands.ai/internal/persistence/indexdb"
	persistlog "farmhands.ai/internal/persistence/log"
	"farmhands.ai/internal/sim/farm"
	"farmhands.ai/internal/sim/tuning"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		runID      = flag.String("run", "", "run id (default: random uuid)")
		ticks      = flag.Uint64("ticks", 0, "stop after this many ticks (0 = until SIGINT/SIGTERM)")
		fast       = flag.Bool("fast", false, "step without waiting for the tick rate (requires clock: tick)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite work index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[farmsim] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if *fast && tune.Clock != string(farm.ClockTick) {
		logger.Fatalf("-fast requires clock: tick (got %q)", tune.Clock)
	}

	id := strings.TrimSpace(*runID)
	if id == "" {
		id = uuid.NewString()
	}
	runDir := filepath.Join(*dataDir, "runs", id)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		logger.Fatalf("run dir: %v", err)
	}
	if err := writeEffectiveTuning(filepath.Join(runDir, "tuning.yaml"), tune); err != nil {
		logger.Fatalf("write effective tuning: %v", err)
	}

	sim, err := farm.NewSim(tune.SimConfig(id))
	if err != nil {
		logger.Fatalf("sim: %v", err)
	}

	// Optional: read-model index (does not affect sim determinism).
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(runDir, "index", "farm.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.RecordRun(context.Background(), id, tune.Digest(), tune); err != nil {
			logger.Printf("index: record run: %v", err)
		}
	}

	tickLog := persistlog.NewTickLogger(runDir)
	defer tickLog.Close()

	sinks := multiTickLogger{tickLog}
	if idx != nil {
		sinks = append(sinks, idx)
	}
	sinks = append(sinks, &summaryLogger{
		every:  uint64(tune.LogEveryTicks),
		sim:    sim,
		idx:    idx,
		logger: logger,
	})
	sim.SetTickLogger(sinks)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Printf("run=%s farm=%dx%d agents=%d tick_rate=%dHz clock=%s tuning=%s",
		id, tune.Farm.Width, tune.Farm.Height, len(sim.Agents()), tune.TickRateHz, tune.Clock, tune.Digest())

	if *ticks == 0 {
		if err := sim.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("sim stopped: %v", err)
		}
	} else {
		runFor(ctx, sim, *ticks, tune.TickRateHz, *fast)
	}

	if err := sim.TickLogErr(); err != nil {
		logger.Printf("tick log: %v", err)
	}
	logSummary(logger, sim)
	if idx != nil {
		syncCtx, syncCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer syncCancel()
		if err := idx.Sync(syncCtx); err != nil {
			logger.Printf("index sync: %v", err)
		} else {
			logIndexSummary(syncCtx, logger, idx, id)
		}
	}
	logger.Printf("stopped at tick=%d", sim.CurrentTick())
}

// runFor steps the sim n times, paced by the tick rate unless fast is set.
func runFor(ctx context.Context, sim *farm.Sim, n uint64, tickRateHz int, fast bool) {
	if fast {
		for i := uint64(0); i < n; i++ {
			if ctx.Err() != nil {
				return
			}
			sim.Step()
		}
		return
	}
	ticker := time.NewTicker(time.Second / time.Duration(tickRateHz))
	defer ticker.Stop()
	for i := uint64(0); i < n; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sim.Step()
		}
	}
}

func writeEffectiveTuning(path string, tune tuning.Tuning) error {
	b, err := yaml.Marshal(tune)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

type multiTickLogger []farm.TickLogger

func (m multiTickLogger) WriteTick(entry farm.TickLogEntry) error {
	var first error
	for _, l := range m {
		if err := l.WriteTick(entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// summaryLogger prints farm counts every `every` ticks. It runs inside Step,
// so it reads sim state on the loop goroutine.
type summaryLogger struct {
	every  uint64
	sim    *farm.Sim
	idx    *indexdb.SQLiteIndex
	logger *log.Logger
}

func (s *summaryLogger) WriteTick(entry farm.TickLogEntry) error {
	if s.every == 0 || (entry.Tick+1)%s.every != 0 {
		return nil
	}
	c := s.sim.Farm().Counts()
	st := s.sim.Stats()
	line := fmt.Sprintf("tick=%d plowed=%d planted=%d watered=%d ripe=%d busy=%d assigned=%d completed=%v noops=%d",
		entry.Tick, c.Plowed, c.Planted, c.Watered, c.Ripe, c.Assigned, st.Assigned, st.Completed, st.Noops)
	if s.idx != nil {
		is := s.idx.Stats()
		line += fmt.Sprintf(" index_queue=%d/%d index_drops=%d index_errors=%d index_lost=%d",
			is.QueueDepth, is.QueueCapacity, is.DropTickTotal, is.WriteErrTotal, is.LostTickTotal)
	}
	s.logger.Print(line)
	return nil
}

func logSummary(logger *log.Logger, sim *farm.Sim) {
	c := sim.Farm().Counts()
	st := sim.Stats()
	logger.Printf("summary: ticks=%d fields=%d plowed=%d planted=%d watered=%d ripe=%d assigned=%d completed=%v noops=%d",
		st.Ticks, c.Fields, c.Plowed, c.Planted, c.Watered, c.Ripe, st.Assigned, st.Completed, st.Noops)
}

func logIndexSummary(ctx context.Context, logger *log.Logger, idx *indexdb.SQLiteIndex, runID string) {
	byKind, err := idx.CompletedByKind(ctx, runID)
	if err != nil {
		logger.Printf("index: completed by kind: %v", err)
		return
	}
	byAgent, err := idx.AgentWork(ctx, runID)
	if err != nil {
		logger.Printf("index: agent work: %v", err)
		return
	}
	last, ok, err := idx.LastTick(ctx, runID)
	if err != nil {
		logger.Printf("index: last tick: %v", err)
		return
	}
	lastTick := "none"
	if ok {
		lastTick = fmt.Sprint(last)
	}
	st := idx.Stats()
	logger.Printf("index: last_tick=%s completed=%v by_agent=%v drops=%d errors=%d lost=%d",
		lastTick, byKind, byAgent, st.DropTickTotal, st.WriteErrTotal, st.LostTickTotal)
}
