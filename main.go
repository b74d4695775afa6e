package main

import (
	"context"
	"flag"
	"os"
	"path"
	"path/filepath"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const logLevelEnv = "INTO_CASHFLOW_LOG_LEVEL"

var (
	configDir = flag.String("conf", defaultConfigDir(),
		"Config directory holding config.yaml, rules and the rate cache.")
	debug     = flag.Bool("debug", false, "Print debug logs.")
	shortcuts = flag.String("short", "shortcuts.yaml", "Name of shortcuts file, in the config directory.")
)

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".into-cashflow"
	}
	return filepath.Join(home, ".into-cashflow")
}

// newLogger logs to stderr so command output can be piped.
func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stderr
	if env := os.Getenv(logLevelEnv); env != "" {
		level = env
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	if *debug {
		lvl = logrus.DebugLevel
	}
	log.SetLevel(lvl)
	return log
}

func main() {
	// Optional, for local overrides of the environment.
	_ = godotenv.Load()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
