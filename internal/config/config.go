// Package config resolves run settings from defaults, MAZEQ_* environment
// variables (optionally from a .env file) and command line flags, in that
// order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"mazeq/internal/engine"
)

const envPrefix = "MAZEQ_"

// Config holds everything a mazeq command needs.
type Config struct {
	MazePath    string // Maze file, npy or raw
	QTablePath  string // Where the learned table is written or read
	InitQTable  string // Optional table to continue training from
	MetricsPath string // Per-episode CSV, empty to skip
	HTMLPath    string // Chart report, empty to skip
	Training    engine.Config
	LogLevel    string
	LogFormat   string // text or json
	ListenAddr  string // Policy server address
	GinMode     string // debug, release or test
	Color       bool   // ANSI colors in terminal output
}

func Defaults() Config {
	return Config{
		QTablePath: "qtable.bin",
		Training:   engine.DefaultConfig(),
		LogLevel:   "info",
		LogFormat:  "text",
		ListenAddr: ":8080",
		GinMode:    "release",
		Color:      true,
	}
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load reads the given .env files (".env" when none are named) into the
// process environment and resolves Defaults against it. A missing .env file
// is not an error.
func Load(log logrus.FieldLogger, envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.WithError(err).Debug(".env file not found or could not be loaded")
	}
	return FromEnv(Defaults(), os.LookupEnv)
}

// FromEnv overlays MAZEQ_* variables on base. Every malformed variable is
// reported, not only the first.
func FromEnv(base Config, lookup LookupFunc) (Config, error) {
	c := base
	e := envReader{lookup: lookup}
	e.str("MAZE", &c.MazePath)
	e.str("QTABLE", &c.QTablePath)
	e.str("INIT_QTABLE", &c.InitQTable)
	e.str("METRICS", &c.MetricsPath)
	e.str("HTML", &c.HTMLPath)
	e.str("LOG_LEVEL", &c.LogLevel)
	e.str("LOG_FORMAT", &c.LogFormat)
	e.str("LISTEN", &c.ListenAddr)
	e.str("GIN_MODE", &c.GinMode)
	e.boolean("COLOR", &c.Color)

	t := &c.Training
	e.integer("EPISODES", &t.Episodes)
	e.integer("MAX_STEPS", &t.MaxSteps)
	e.int64("SEED", &t.Seed)
	e.float("LR", &t.LearningRate)
	e.float("DISCOUNT", &t.Discount)
	e.float("EPSILON_DECAY", &t.EpsilonDecay)
	e.float("EPSILON_START", &t.EpsilonStart)
	e.float("EPSILON_FINAL", &t.EpsilonFinal)
	e.boolean("SHAPING", &t.RewardShaping)
	e.boolean("PASS_THROUGH_WALLS", &t.PassThroughWalls)
	e.integer("SUCCESS_WINDOW", &t.SuccessWindow)
	e.float("SUCCESS_THRESHOLD", &t.SuccessThreshold)
	e.integer("LOG_EVERY", &t.LogEvery)
	if v, ok := e.get("SCHEDULE"); ok {
		d, err := engine.ParseDecaySchedule(v)
		e.fail("SCHEDULE", err)
		if err == nil {
			t.Decay = d
		}
	}
	if v, ok := e.get("SCALING"); ok {
		s, err := engine.ParseRewardScaling(v)
		e.fail("SCALING", err)
		if err == nil {
			t.Scaling = s
		}
	}
	return c, errors.Join(e.errs...)
}

type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(envPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(key string, err error) {
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		e.fail(key, err)
		if err == nil {
			*dst = n
		}
	}
}

func (e *envReader) int64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		e.fail(key, err)
		if err == nil {
			*dst = n
		}
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		e.fail(key, err)
		if err == nil {
			*dst = f
		}
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		e.fail(key, err)
		if err == nil {
			*dst = b
		}
	}
}

// RegisterTrainingFlags binds the training flags on fs with c's current
// values as defaults, so flags override the environment.
func (c *Config) RegisterTrainingFlags(fs *flag.FlagSet) {
	t := &c.Training
	fs.IntVar(&t.Episodes, "episodes", t.Episodes, "number of training episodes")
	fs.IntVar(&t.MaxSteps, "max_steps", t.MaxSteps, "step budget per episode")
	fs.Int64Var(&t.Seed, "seed", t.Seed, "random seed")
	fs.Float64Var(&t.LearningRate, "lr", t.LearningRate, "learning rate (0-1]")
	fs.Float64Var(&t.Discount, "df", t.Discount, "discount factor [0-1]")
	fs.Float64Var(&t.EpsilonDecay, "decay", t.EpsilonDecay, "epsilon decay: step constant, linear delta or exponential factor; 0 picks the schedule default")
	fs.Float64Var(&t.EpsilonStart, "epsilon_start", t.EpsilonStart, "initial epsilon")
	fs.Float64Var(&t.EpsilonFinal, "epsilon_final", t.EpsilonFinal, "epsilon floor for the step-exponential schedule")
	fs.BoolVar(&t.RewardShaping, "use_distance_shaping", t.RewardShaping, "add the distance-to-goal shaping term")
	fs.BoolVar(&t.PassThroughWalls, "enable_transpasing", t.PassThroughWalls, "let the agent walk through walls")
	fs.IntVar(&t.SuccessWindow, "window", t.SuccessWindow, "episodes in the rolling success window")
	fs.Float64Var(&t.SuccessThreshold, "threshold", t.SuccessThreshold, "stop once the rolling success rate (percent) reaches this; 0 disables")
	fs.IntVar(&t.LogEvery, "log_every", t.LogEvery, "log progress every n episodes")
	fs.Func("schedule", "epsilon schedule: step-exponential, linear or exponential (default "+t.Decay.String()+")", func(v string) error {
		d, err := engine.ParseDecaySchedule(v)
		if err == nil {
			t.Decay = d
		}
		return err
	})
	fs.Func("scaling", "reward scaling: scaled or unscaled (default "+t.Scaling.String()+")", func(v string) error {
		s, err := engine.ParseRewardScaling(v)
		if err == nil {
			t.Scaling = s
		}
		return err
	})
}

// RegisterOutputFlags binds the file and terminal flags shared by commands.
func (c *Config) RegisterOutputFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.MazePath, "maze", c.MazePath, "maze file (npy or raw)")
	fs.StringVar(&c.QTablePath, "qtable_path", c.QTablePath, "q-table file")
	fs.StringVar(&c.LogLevel, "log_level", c.LogLevel, "log level")
	fs.BoolVar(&c.Color, "color", c.Color, "colored terminal output")
}

// Validate checks the settings no command can run without and returns every
// violation found.
func (c Config) Validate() error {
	var errs []error
	if c.MazePath == "" {
		errs = append(errs, errors.New("maze path is required"))
	}
	if c.QTablePath == "" {
		errs = append(errs, errors.New("q-table path is required"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("unknown gin mode %q", c.GinMode))
	}
	t := c.Training
	if t.Episodes <= 0 {
		errs = append(errs, fmt.Errorf("episodes must be positive (got %d)", t.Episodes))
	}
	if t.MaxSteps <= 0 {
		errs = append(errs, fmt.Errorf("max steps must be positive (got %d)", t.MaxSteps))
	}
	if t.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("learning rate must be positive (got %g)", t.LearningRate))
	}
	if err := t.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// NewLogger builds the logger described by LogLevel and LogFormat.
func (c Config) NewLogger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: !c.Color})
	}
	return logger, nil
}

// TrainerConfig returns the engine settings bound to logger.
func (c Config) TrainerConfig(logger logrus.FieldLogger) engine.Config {
	t := c.Training
	t.Logger = logger
	return t
}
