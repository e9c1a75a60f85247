// Package model holds the shared data types of the dilemma engine:
// strategies, payoff parameters, and per-point results.
package model

import "fmt"

// Strategy is the action an agent plays against every neighbor.
type Strategy uint8

const (
	Defect    Strategy = 0
	Cooperate Strategy = 1
)

// String returns the single-letter tag used in logs and traces.
func (s Strategy) String() string {
	if s == Cooperate {
		return "C"
	}
	return "D"
}

// Params are the dilemma-strength offsets for one parameter point.
type Params struct {
	Dg float64 `json:"dg"` // Greed: T = 1 + Dg
	Dr float64 `json:"dr"` // Risk:  S = -Dr
}

func (p Params) String() string {
	return fmt.Sprintf("Dg=%.1f Dr=%.1f", p.Dg, p.Dr)
}

// Matrix is the payoff matrix derived from Params.
type Matrix struct {
	R float64 // Reward, mutual cooperation
	S float64 // Sucker, cooperate against defect
	T float64 // Temptation, defect against cooperate
	P float64 // Punishment, mutual defection
}

// Matrix returns the payoff matrix for these parameters.
func (p Params) Matrix() Matrix {
	return Matrix{R: 1, S: -p.Dr, T: 1 + p.Dg, P: 0}
}

// Payoff returns the focal player's payoff against the opponent.
func (m Matrix) Payoff(focal, opponent Strategy) float64 {
	switch {
	case focal == Cooperate && opponent == Cooperate:
		return m.R
	case focal == Cooperate:
		return m.S
	case opponent == Cooperate:
		return m.T
	default:
		return m.P
	}
}

// Outcome is the terminal state of one parameter-point run.
type Outcome uint8

const (
	OutcomeAbsorbed  Outcome = iota + 1 // Fc reached 0 or 1
	OutcomeConverged                    // Fc stable relative to the trailing window
	OutcomeTimedOut                     // Round budget exhausted
)

var outcomeNames = map[Outcome]string{
	OutcomeAbsorbed:  "absorbed",
	OutcomeConverged: "converged",
	OutcomeTimedOut:  "timed_out",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// ParseOutcome maps a stored outcome name back to its value.
func ParseOutcome(s string) (Outcome, error) {
	for o, name := range outcomeNames {
		if name == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	parsed, err := ParseOutcome(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// EpisodeResult is the single summary value produced for one
// (Dg, Dr, episode) triple.
type EpisodeResult struct {
	Episode int     `json:"episode"`
	Dg      float64 `json:"dg"`
	Dr      float64 `json:"dr"`
	Fc      float64 `json:"fc"`
	Outcome Outcome `json:"outcome"`
	Rounds  int     `json:"rounds"`
}

// Params returns the parameter point of the result.
func (r EpisodeResult) Params() Params {
	return Params{Dg: r.Dg, Dr: r.Dr}
}

// TracePoint is one (round, Fc) sample of a run.
type TracePoint struct {
	Round int     `json:"round" db:"round"`
	Fc    float64 `json:"fc" db:"fc"`
}

// EnsemblePoint aggregates the Fc of one parameter point across episodes.
type EnsemblePoint struct {
	Dg       float64 `json:"dg" db:"dg"`
	Dr       float64 `json:"dr" db:"dr"`
	Episodes int     `json:"episodes" db:"episodes"`
	Mean     float64 `json:"mean" db:"mean"`
	Variance float64 `json:"variance" db:"variance"` // Sample variance, 0 for a single episode
}
