package farm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"farmhands.ai/internal/sim/tasks"
)

// Sim drives a farm and its agents one tick at a time.
//
// A tick is: every agent acts in roster order, then the coordinator hands work
// to whoever is idle. An agent finishing this tick is therefore reassigned in
// the same tick, and every move or action in the tick sees field state as it
// stood before coordination.
type Sim struct {
	cfg SimConfig

	farm   *Farm
	agents []*Agent
	byID   map[AgentID]*Agent
	coord  *Coordinator

	tickClock *TickClock
	tick      uint64

	stats      Stats
	tickLogger TickLogger
	logErr     error

	stop     chan struct{}
	stopOnce sync.Once
}

func NewSim(cfg SimConfig) (*Sim, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("tick rate must be positive: %d", cfg.TickRateHz)
	}
	if cfg.Movement.Step <= 0 {
		cfg.Movement = DefaultMovement()
	}
	if cfg.Movement.ArriveEpsilon <= 0 {
		cfg.Movement.ArriveEpsilon = cfg.Movement.Step
	}
	if cfg.Movement.ArriveEpsilon < cfg.Movement.Step {
		return nil, fmt.Errorf("arrive epsilon %v is below move step %v", cfg.Movement.ArriveEpsilon, cfg.Movement.Step)
	}

	s := &Sim{
		cfg:   cfg,
		byID:  map[AgentID]*Agent{},
		stats: Stats{Completed: map[tasks.Kind]int{}},
		stop:  make(chan struct{}),
	}

	growth := Growth{Stages: cfg.Stages, StageDuration: cfg.StageDuration, Clock: WallClock}
	switch cfg.Clock {
	case ClockWall, "":
	case ClockTick:
		s.tickClock = NewTickClock(cfg.Epoch, time.Second/time.Duration(cfg.TickRateHz))
		growth.Clock = s.tickClock.Now
	default:
		return nil, fmt.Errorf("unknown clock mode %q", cfg.Clock)
	}

	f, err := NewFarm(cfg.Width, cfg.Height, growth)
	if err != nil {
		return nil, err
	}
	s.farm = f

	for i, spec := range cfg.Agents {
		id := AgentID(strings.TrimSpace(spec.ID))
		if id == "" {
			id = AgentID(fmt.Sprintf("A%d", i+1))
		}
		if _, dup := s.byID[id]; dup {
			return nil, fmt.Errorf("duplicate agent id %s", id)
		}
		a := NewAgent(id, spec.Row, spec.Col, cfg.Movement)
		s.agents = append(s.agents, a)
		s.byID[id] = a
	}
	s.coord = NewCoordinator(f, s.agents)
	return s, nil
}

func (s *Sim) SetTickLogger(l TickLogger) { s.tickLogger = l }

func (s *Sim) Farm() *Farm               { return s.farm }
func (s *Sim) Agents() []*Agent          { return s.agents }
func (s *Sim) Coordinator() *Coordinator { return s.coord }
func (s *Sim) CurrentTick() uint64       { return s.tick }
func (s *Sim) RunID() string             { return s.cfg.RunID }

func (s *Sim) Agent(id AgentID) *Agent { return s.byID[id] }

// TickLogErr returns the first error reported by the tick logger, if any.
func (s *Sim) TickLogErr() error { return s.logErr }

func (s *Sim) Stats() Stats {
	out := s.stats
	out.Completed = make(map[tasks.Kind]int, len(s.stats.Completed))
	for k, v := range s.stats.Completed {
		out.Completed[k] = v
	}
	return out
}

// Run steps the sim at the configured tick rate until ctx is done or Stop is called.
func (s *Sim) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(s.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case <-ticker.C:
			s.Step()
		}
	}
}

func (s *Sim) Stop() { s.stopOnce.Do(func() { close(s.stop) }) }

// Step advances the sim by a single tick.
func (s *Sim) Step() TickLogEntry {
	nowTick := s.tick
	var events []Event

	for _, a := range s.agents {
		c := a.Act()
		if c == nil {
			continue
		}
		events = append(events, Event{
			Type:    EventTaskDone,
			AgentID: c.AgentID,
			TaskID:  c.TaskID,
			Kind:    c.Kind,
			Row:     c.Cell.Row,
			Col:     c.Cell.Col,
			Noop:    !c.Applied,
		})
		if c.Applied {
			s.stats.Completed[c.Kind]++
		} else {
			s.stats.Noops++
		}
	}

	for _, as := range s.coord.Coordinate() {
		events = append(events, Event{
			Type:     EventTaskAssigned,
			AgentID:  as.AgentID,
			TaskID:   as.TaskID,
			Kind:     as.Kind,
			Row:      as.Cell.Row,
			Col:      as.Cell.Col,
			Distance: as.Distance,
		})
		s.stats.Assigned++
	}

	entry := TickLogEntry{
		Tick:   nowTick,
		RunID:  s.cfg.RunID,
		Events: events,
		Digest: s.stateDigest(nowTick),
	}
	if s.tickLogger != nil {
		if err := s.tickLogger.WriteTick(entry); err != nil && s.logErr == nil {
			s.logErr = err
		}
	}

	s.tick++
	s.stats.Ticks = s.tick
	if s.tickClock != nil {
		s.tickClock.Advance()
	}
	return entry
}

// StepOnce advances the sim by one tick and returns that tick's number and
// state digest. It is primarily intended for deterministic replays/tests.
func (s *Sim) StepOnce() (tick uint64, digest string) {
	e := s.Step()
	return e.Tick, e.Digest
}

func (s *Sim) View() View {
	v := View{
		Tick:   s.tick,
		Width:  s.farm.Width(),
		Height: s.farm.Height(),
		Fields: make([]FieldView, 0, s.farm.Width()*s.farm.Height()),
		Agents: make([]AgentView, 0, len(s.agents)),
	}
	s.farm.Each(func(f *Field) {
		holder, _ := f.AssignedWorker()
		v.Fields = append(v.Fields, FieldView{
			Row:        f.Row(),
			Col:        f.Col(),
			Plowed:     f.IsPlowed(),
			Planted:    f.IsPlanted(),
			Watered:    f.IsWatered(),
			Progress:   f.GrowProgress(),
			Stage:      f.GrowStage(),
			AssignedTo: holder,
		})
	})
	for _, a := range s.agents {
		av := AgentView{ID: a.ID, Pos: a.Pos}
		if t, ok := a.CurrentTask(); ok {
			av.Task = t.Kind
			av.Target = t.Field.Cell()
		}
		v.Agents = append(v.Agents, av)
	}
	return v
}
