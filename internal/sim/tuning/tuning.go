package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"farmhands.ai/internal/sim/farm"
)

type Tuning struct {
	Farm FarmSize `yaml:"farm"`

	TickRateHz    int     `yaml:"tick_rate_hz"`
	MoveStep      float64 `yaml:"move_step"`
	ArriveEpsilon float64 `yaml:"arrive_epsilon"`
	Growth        Growth  `yaml:"growth"`

	// Clock is "wall" or "tick"; see farm.ClockMode.
	Clock string `yaml:"clock"`
	// Epoch anchors the tick clock (RFC 3339).
	Epoch string `yaml:"epoch"`

	LogEveryTicks int `yaml:"log_every_ticks"`

	Agents []AgentSpec `yaml:"agents"`
}

type FarmSize struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Growth struct {
	Stages          int `yaml:"stages"`
	StageDurationMs int `yaml:"stage_duration_ms"`
}

type AgentSpec struct {
	ID  string  `yaml:"id"`
	Row float64 `yaml:"row"`
	Col float64 `yaml:"col"`
}

const defaultEpoch = "2024-01-01T00:00:00Z"

func Defaults() Tuning {
	return Tuning{
		Farm:          FarmSize{Width: 20, Height: 10},
		TickRateHz:    30,
		MoveStep:      farm.DefaultMoveStep,
		ArriveEpsilon: farm.DefaultMoveStep,
		Growth: Growth{
			Stages:          farm.DefaultStages,
			StageDurationMs: int(farm.DefaultStageDuration / time.Millisecond),
		},
		Clock:         string(farm.ClockWall),
		Epoch:         defaultEpoch,
		LogEveryTicks: 300,
		Agents: []AgentSpec{
			{ID: "A1", Row: 1, Col: 1},
			{ID: "A2", Row: 10, Col: 20},
		},
	}
}

// Load reads a tuning file over Defaults. The raw document is checked against
// the embedded JSON schema before it is decoded.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := validateSchema(raw); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	t.Clock = strings.ToLower(strings.TrimSpace(t.Clock))
	if t.Clock == "" {
		t.Clock = string(farm.ClockWall)
	}
	if strings.TrimSpace(t.Epoch) == "" {
		t.Epoch = defaultEpoch
	}
	if t.ArriveEpsilon <= 0 {
		t.ArriveEpsilon = t.MoveStep
	}
	for i := range t.Agents {
		t.Agents[i].ID = strings.TrimSpace(t.Agents[i].ID)
		if t.Agents[i].ID == "" {
			t.Agents[i].ID = fmt.Sprintf("A%d", i+1)
		}
	}
}

func (t Tuning) Validate() error {
	if t.Farm.Width <= 0 || t.Farm.Height <= 0 {
		return fmt.Errorf("farm size must be positive: %dx%d", t.Farm.Width, t.Farm.Height)
	}
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive: %d", t.TickRateHz)
	}
	if t.MoveStep <= 0 || t.MoveStep > 1 {
		return fmt.Errorf("move_step must be in (0,1]: %v", t.MoveStep)
	}
	// A tolerance below the step lets an agent overshoot its field forever.
	if t.ArriveEpsilon < t.MoveStep || t.ArriveEpsilon > 1 {
		return fmt.Errorf("arrive_epsilon must be in [move_step,1]: %v (move_step %v)", t.ArriveEpsilon, t.MoveStep)
	}
	if t.Growth.Stages <= 0 || t.Growth.StageDurationMs <= 0 {
		return fmt.Errorf("growth needs positive stages and stage_duration_ms")
	}
	switch farm.ClockMode(t.Clock) {
	case farm.ClockWall, farm.ClockTick:
	default:
		return fmt.Errorf("unknown clock %q", t.Clock)
	}
	if _, err := time.Parse(time.RFC3339, t.Epoch); err != nil {
		return fmt.Errorf("epoch: %w", err)
	}
	if len(t.Agents) == 0 {
		return fmt.Errorf("at least one agent is required")
	}
	seen := map[string]bool{}
	for _, a := range t.Agents {
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id %s", a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

// SimConfig maps the tuning onto a farm.SimConfig for runID.
func (t Tuning) SimConfig(runID string) farm.SimConfig {
	epoch, _ := time.Parse(time.RFC3339, t.Epoch)
	cfg := farm.SimConfig{
		RunID:         runID,
		Width:         t.Farm.Width,
		Height:        t.Farm.Height,
		TickRateHz:    t.TickRateHz,
		Stages:        t.Growth.Stages,
		StageDuration: time.Duration(t.Growth.StageDurationMs) * time.Millisecond,
		Movement:      farm.Movement{Step: t.MoveStep, ArriveEpsilon: t.ArriveEpsilon},
		Clock:         farm.ClockMode(t.Clock),
		Epoch:         epoch,
	}
	for _, a := range t.Agents {
		cfg.Agents = append(cfg.Agents, farm.AgentSpec{ID: a.ID, Row: a.Row, Col: a.Col})
	}
	return cfg
}

// Digest identifies an effective tuning so a tick log can be matched to the
// configuration that produced it.
func (t Tuning) Digest() string {
	b, _ := json.Marshal(t)
	return shortHash(b)
}

func shortHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}
