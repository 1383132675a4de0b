package main

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/hcl"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	miniormCmd = &cobra.Command{
		Use:               "miniorm",
		Short:             "A minimal active record layer",
		Long:              "Miniorm is a minimal active record layer over a SQL database.",
		PersistentPreRunE: miniormPreRun,
		PersistentPostRun: miniormPostRun,
	}

	logFile   = "miniorm.log"
	logLevel  = "info"
	logStderr = false
	logWriter io.WriteCloser

	driver   = "sqlite"
	database = "miniorm.db"

	configFile = "miniorm.hcl"
	noConfig   = false

	cfgVars   = map[string]*pflag.Flag{}
	cfg       = map[string]interface{}{}
	usedFlags = map[string]struct{}{}
)

func init() {
	log.SetFormatter(&log.TextFormatter{
		DisableLevelTruncation: true,
	})

	fs := miniormCmd.PersistentFlags()

	fs.StringVar(&logFile, "log-file", logFile, "`file` to use for logging")
	cfgVars["log-file"] = fs.Lookup("log-file")

	fs.StringVar(&logLevel, "log-level", logLevel,
		"log level: trace, debug, info, warn, error, fatal, or panic")
	cfgVars["log-level"] = fs.Lookup("log-level")

	fs.BoolVarP(&logStderr, "log-stderr", "s", logStderr, "log to standard error")

	fs.StringVar(&driver, "driver", driver, "database `driver`: sqlite or postgres")
	cfgVars["driver"] = fs.Lookup("driver")

	fs.StringVar(&database, "database", database, "database to open: a `file` or data source")
	cfgVars["database"] = fs.Lookup("database")

	fs.StringVar(&configFile, "config-file", configFile, "`file` to load config from")
	fs.BoolVar(&noConfig, "no-config", noConfig, "don't load config file")
}

func miniormPreRun(cmd *cobra.Command, args []string) error {
	cmd.Flags().Visit(
		func(flg *pflag.Flag) {
			usedFlags[flg.Name] = struct{}{}
		})

	if configFile != "" && !noConfig {
		err := loadConfig()
		if err != nil {
			return fmt.Errorf("miniorm: %s", err)
		}
	}

	if !logStderr && logFile != "" {
		var err error
		logWriter, err = os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			logWriter = nil
			return fmt.Errorf("miniorm: %s", err)
		}
		log.SetOutput(logWriter)
	}

	ll, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("miniorm: %s", err)
	}
	log.SetLevel(ll)

	log.WithField("pid", os.Getpid()).Info("miniorm starting")
	return nil
}

func miniormPostRun(cmd *cobra.Command, args []string) {
	log.WithField("pid", os.Getpid()).Info("miniorm done")

	if logWriter != nil {
		logWriter.Close()
	}
}

// loadConfig merges config file values beneath flags given explicitly on the
// command line.
func loadConfig() error {
	b, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	err = hcl.Decode(&cfg, string(b))
	if err != nil {
		return err
	}

	for name, val := range cfg {
		flg, ok := cfgVars[name]
		if !ok || flg == nil {
			return fmt.Errorf("%s is not a config variable", name)
		}
		if _, ok := usedFlags[flg.Name]; ok {
			continue
		}
		err := flg.Value.Set(fmt.Sprintf("%v", val))
		if err != nil {
			return fmt.Errorf("%s: %s", name, err)
		}
	}

	return nil
}

func main() {
	if miniormCmd.Execute() != nil {
		os.Exit(1)
	}
}
