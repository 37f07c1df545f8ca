package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"farmhands.ai/internal/sim/farm"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoad_RepoTuningYAML(t *testing.T) {
	tu, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load tuning.yaml: %v", err)
	}
	if tu.Farm.Width != 20 || tu.Farm.Height != 10 {
		t.Fatalf("farm size: %+v", tu.Farm)
	}
	if tu.Clock != string(farm.ClockTick) {
		t.Fatalf("clock: %q", tu.Clock)
	}
	if len(tu.Agents) != 3 {
		t.Fatalf("agents: %+v", tu.Agents)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := writeTuning(t, "farm: {width: 6, height: 4}\nagents:\n  - {row: 2, col: 3}\n")
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Defaults()
	if tu.TickRateHz != def.TickRateHz || tu.MoveStep != def.MoveStep || tu.Growth != def.Growth {
		t.Fatalf("defaults not kept: %+v", tu)
	}
	if len(tu.Agents) != 1 || tu.Agents[0].ID != "A1" || tu.Agents[0].Row != 2 || tu.Agents[0].Col != 3 {
		t.Fatalf("agents: %+v", tu.Agents)
	}
}

func TestLoad_EmptyFileIsDefaults(t *testing.T) {
	tu, err := Load(writeTuning(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Defaults()
	want.Normalize()
	if tu.Digest() != want.Digest() {
		t.Fatalf("empty file should load as defaults: %+v", tu)
	}
}

func TestLoad_SchemaRejects(t *testing.T) {
	cases := map[string]string{
		"unknown_key":  "farm: {width: 3, height: 3}\nweather: rain\n",
		"bad_clock":    "clock: sundial\n",
		"zero_width":   "farm: {width: 0, height: 3}\n",
		"string_width": "farm: {width: wide, height: 3}\n",
		"agent_no_col": "agents:\n  - {row: 1}\n",
		"step_too_big": "move_step: 2\n",
		"epsilon_big":  "arrive_epsilon: 2\n",
	}
	for name, body := range cases {
		if _, err := Load(writeTuning(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoad_RejectsEpsilonBelowStep(t *testing.T) {
	p := writeTuning(t, "farm: {width: 2, height: 1}\nmove_step: 0.4\narrive_epsilon: 0.1\nclock: tick\nagents:\n  - {id: A1, row: 1, col: 1}\n")
	_, err := Load(p)
	if err == nil || !strings.Contains(err.Error(), "arrive_epsilon") {
		t.Fatalf("expected arrive_epsilon error, got %v", err)
	}

	p = writeTuning(t, "move_step: 0.4\narrive_epsilon: 0.5\n")
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("epsilon above step should load: %v", err)
	}
	if tu.ArriveEpsilon != 0.5 {
		t.Fatalf("arrive epsilon: %v", tu.ArriveEpsilon)
	}
}

func TestValidate_DuplicateAgents(t *testing.T) {
	tu := Defaults()
	tu.Agents = []AgentSpec{{ID: "A1"}, {ID: "A1"}}
	err := tu.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate agent error, got %v", err)
	}
}

func TestNormalize_FillsEpsilonAndIDs(t *testing.T) {
	tu := Defaults()
	tu.ArriveEpsilon = 0
	tu.MoveStep = 0.1
	tu.Clock = " TICK "
	tu.Agents = []AgentSpec{{ID: ""}, {ID: " B "}}
	tu.Normalize()
	if tu.ArriveEpsilon != 0.1 {
		t.Fatalf("arrive epsilon: %v", tu.ArriveEpsilon)
	}
	if tu.Clock != "tick" {
		t.Fatalf("clock: %q", tu.Clock)
	}
	if tu.Agents[0].ID != "A1" || tu.Agents[1].ID != "B" {
		t.Fatalf("agent ids: %+v", tu.Agents)
	}
}

func TestSimConfig_Mapping(t *testing.T) {
	tu := Defaults()
	tu.Clock = "tick"
	cfg := tu.SimConfig("run-1")
	if cfg.RunID != "run-1" || cfg.Width != 20 || cfg.Height != 10 {
		t.Fatalf("cfg: %+v", cfg)
	}
	if cfg.StageDuration != 60*time.Second || cfg.Stages != 4 {
		t.Fatalf("growth: %v x %d", cfg.StageDuration, cfg.Stages)
	}
	if cfg.Clock != farm.ClockTick || !cfg.Epoch.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("clock: %s %v", cfg.Clock, cfg.Epoch)
	}
	if len(cfg.Agents) != 2 || cfg.Agents[1].ID != "A2" {
		t.Fatalf("agents: %+v", cfg.Agents)
	}
	if _, err := farm.NewSim(cfg); err != nil {
		t.Fatalf("NewSim from defaults: %v", err)
	}
}
