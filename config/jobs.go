package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"candle-featuresv1/internal/features"
	"candle-featuresv1/internal/indicator"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidJobs wraps every job file validation failure.
var ErrInvalidJobs = errors.New("config: invalid jobs file")

var validate = validator.New()

// Job is one symbol and the intervals to process for it.
type Job struct {
	Symbol    string   `yaml:"symbol" validate:"required"`
	Intervals []string `yaml:"intervals" validate:"required,min=1,dive,required"`
}

// Export selects where and how feature tables are written.
type Export struct {
	Dir    string `yaml:"dir" default:"data/features"`
	Format string `yaml:"format" default:"parquet" validate:"oneof=csv parquet"`
}

// Engine configures the live indicator engine.
type Engine struct {
	Intervals     []indicator.IntervalConfig `yaml:"intervals" validate:"dive"`
	SnapshotEvery time.Duration              `yaml:"snapshot_every" default:"30s" validate:"gt=0"`
	RingSize      int                        `yaml:"ring_size" default:"4096" validate:"gt=0"`
}

// Jobs is the YAML job file.
type Jobs struct {
	Concurrency    int             `yaml:"concurrency" default:"4" validate:"gte=1"`
	Limit          int             `yaml:"limit" default:"1000" validate:"gt=0,lte=1000"`
	SequenceLength int             `yaml:"sequence_length" default:"60" validate:"gt=0"`
	Features       features.Config `yaml:"features"`
	Export         Export          `yaml:"export"`
	Engine         Engine          `yaml:"engine"`
	Jobs           []Job           `yaml:"jobs" validate:"required,min=1,dive"`
}

// Task is one symbol × interval pair.
type Task struct {
	Symbol   string
	Interval string
}

// Tasks expands the job list in file order.
func (j *Jobs) Tasks() []Task {
	var out []Task
	for _, job := range j.Jobs {
		for _, iv := range job.Intervals {
			out = append(out, Task{Symbol: strings.ToUpper(job.Symbol), Interval: iv})
		}
	}
	return out
}

// Symbols returns the distinct upper-cased symbols in file order.
func (j *Jobs) Symbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, job := range j.Jobs {
		s := strings.ToUpper(job.Symbol)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// LoadJobs reads, defaults and validates a job file.
func LoadJobs(path string) (*Jobs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read jobs file: %w", err)
	}
	return ParseJobs(data)
}

// ParseJobs decodes YAML, applies defaults and validates.
func ParseJobs(data []byte) (*Jobs, error) {
	var j Jobs
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("config: parse jobs file: %w", err)
	}
	if err := defaults.Set(&j); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

// Validate checks struct tags, feature periods and engine intervals.
func (j *Jobs) Validate() error {
	if err := validate.Struct(j); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidJobs, describe(err))
	}
	if err := j.Features.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJobs, err)
	}
	if err := indicator.ValidateConfigs(j.Engine.Intervals); err != nil {
		return fmt.Errorf("%w: engine: %v", ErrInvalidJobs, err)
	}
	return nil
}

func describe(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Namespace()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must have at least %s entries", fe.Namespace(), fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Namespace(), strings.ReplaceAll(fe.Param(), " ", ", ")))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(msgs, "; ")
}
