package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// SolverTuning holds the internal annealing parameters handed to the solver.
// They are never exposed to API callers.
type SolverTuning struct {
	TemperatureInitial float64 `yaml:"temperature_initial" toml:"temperature_initial" json:"temperature_initial"`
	TemperatureFinal   float64 `yaml:"temperature_final" toml:"temperature_final" json:"temperature_final"`
	CoolingRate        float64 `yaml:"cooling_rate" toml:"cooling_rate" json:"cooling_rate"`
	MaxIterations      int     `yaml:"max_iterations" toml:"max_iterations" json:"max_iterations"`
	MaxNoImprovement   int     `yaml:"max_no_improvement" toml:"max_no_improvement" json:"max_no_improvement"`
}

// LoadSolverTuning loads tuning from the YAML or TOML file at path, falling
// back to defaults
func LoadSolverTuning(path string) SolverTuning {
	if path != "" {
		tuning, err := loadSolverTuningFromFile(path)
		if err == nil {
			return tuning
		}
		log.Printf("⚠️  Solver tuning: %v, using defaults", err)
	}
	return DefaultSolverTuning()
}

// loadSolverTuningFromFile reads a tuning file, TOML when the extension is
// .toml and YAML otherwise. Keys missing from the file keep their defaults.
func loadSolverTuningFromFile(path string) (SolverTuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SolverTuning{}, fmt.Errorf("read %s: %w", path, err)
	}

	tuning := DefaultSolverTuning()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err = toml.Decode(string(data), &tuning)
	} else {
		err = yaml.Unmarshal(data, &tuning)
	}
	if err != nil {
		return SolverTuning{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := tuning.Validate(); err != nil {
		return SolverTuning{}, err
	}
	return tuning, nil
}

// DefaultSolverTuning returns the built-in tuning, with env overrides
func DefaultSolverTuning() SolverTuning {
	return SolverTuning{
		TemperatureInitial: getFloatEnv("SOLVER_TEMPERATURE_INITIAL", 1000.0),
		TemperatureFinal:   getFloatEnv("SOLVER_TEMPERATURE_FINAL", 0.1),
		CoolingRate:        getFloatEnv("SOLVER_COOLING_RATE", 0.95),
		MaxIterations:      getInt("SOLVER_MAX_ITERATIONS", 1000),
		MaxNoImprovement:   getInt("SOLVER_MAX_NO_IMPROVEMENT", 50),
	}
}

// Validate rejects tuning values the annealer cannot work with
func (t SolverTuning) Validate() error {
	if t.TemperatureInitial <= t.TemperatureFinal || t.TemperatureFinal <= 0 {
		return fmt.Errorf("temperature_initial must exceed temperature_final > 0")
	}
	if t.CoolingRate <= 0 || t.CoolingRate >= 1 {
		return fmt.Errorf("cooling_rate must be in (0,1)")
	}
	if t.MaxIterations < 1 || t.MaxNoImprovement < 1 {
		return fmt.Errorf("iteration limits must be positive")
	}
	return nil
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
