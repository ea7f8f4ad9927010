package task

import (
	"fmt"
)

// Phase is a global ordering boundary across all tasks
type Phase int

// Phases in execution order
const (
	PhaseSetup Phase = iota
	PhaseTest
	PhaseTeardown
)

// Phases lists all phases in execution order
var Phases = []Phase{PhaseSetup, PhaseTest, PhaseTeardown}

var phaseToString = []string{
	"setup",
	"test",
	"teardown",
}

var stringToPhase = make(map[string]Phase)

func (p Phase) String() string {
	pi := int(p)
	if pi < 0 || pi >= len(phaseToString) {
		return fmt.Sprintf("phase(%d)", pi)
	}
	return phaseToString[pi]
}

// ParsePhase converts a phase name to Phase
func ParsePhase(s string) (Phase, error) {
	p, ok := stringToPhase[s]
	if !ok {
		return 0, fmt.Errorf("invalid phase: %q", s)
	}
	return p, nil
}

// MarshalText encodes the phase name
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name
func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func init() {
	for i, v := range phaseToString {
		stringToPhase[v] = Phase(i)
	}
}
