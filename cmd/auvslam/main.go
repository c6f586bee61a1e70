// Package main runs the incremental IMU estimator over a recorded dataset.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"github.com/onurbagoren/UW-SLAM/config"
	"github.com/onurbagoren/UW-SLAM/dataset"
	"github.com/onurbagoren/UW-SLAM/frontend"
	"github.com/onurbagoren/UW-SLAM/logging"
	"github.com/onurbagoren/UW-SLAM/viz"
)

const (
	flagConfig     = "config"
	flagStates     = "states"
	flagStateTimes = "state-times"
	flagIMU        = "imu"
	flagDepth      = "depth"
	flagBag        = "bag"
	flagBagTopic   = "bag-topic"
	flagRunLength  = "run-length"
	flagExhausted  = "until-exhausted"
	flagPlot       = "plot"
	flagDebug      = "debug"
	flagLogFile    = "log-file"

	// exitRunFailed is the exit code of a run that stopped with a RunError.
	exitRunFailed = 2
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// configFlag is declared on the app and on the commands that read a config, so it is accepted
// before or after the command name. Each declaration needs its own flag value.
func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    flagConfig,
		Aliases: []string{"c"},
		Usage:   "load configuration from `FILE`",
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "auvslam",
		Usage: "fuse external state estimates with IMU preintegration",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to the size rotated `FILE`",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the estimator and print a summary",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: flagStates, Usage: "external state csv `FILE`"},
					&cli.StringFlag{Name: flagStateTimes, Usage: "external state timestamp csv `FILE`"},
					&cli.StringFlag{Name: flagIMU, Usage: "imu csv `FILE`"},
					&cli.StringFlag{Name: flagDepth, Usage: "depth sensor csv `FILE`"},
					&cli.StringFlag{Name: flagBag, Usage: "read imu samples from rosbag `FILE`"},
					&cli.StringFlag{Name: flagBagTopic, Usage: "imu topic inside the bag"},
					&cli.IntFlag{Name: flagRunLength, Usage: "maximum number of epochs"},
					&cli.BoolFlag{Name: flagExhausted, Usage: "stop at the end of the state series"},
					&cli.StringFlag{Name: flagPlot, Usage: "write an x-y trajectory plot to `FILE` (.png, .svg)"},
				},
				Action: runCommand,
			},
			{
				Name:  "validate",
				Usage: "check a configuration file",
				Flags: []cli.Flag{configFlag()},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if err := cfg.Validate("config"); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, "configuration is valid")
					return nil
				},
			},
			{
				Name:  "schema",
				Usage: "print the json schema of a configuration file",
				Action: func(c *cli.Context) error {
					out, err := config.SchemaJSON()
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, string(out))
					return nil
				},
			},
		},
	}
}

// configPath returns the --config value from the innermost command it was given to.
func configPath(c *cli.Context) string {
	for _, ctx := range c.Lineage() {
		if ctx.IsSet(flagConfig) {
			return ctx.String(flagConfig)
		}
	}
	return ""
}

// loadConfig reads the config file when one is given and applies the command line overrides.
func loadConfig(c *cli.Context) (*config.RunConfig, error) {
	var cfg *config.RunConfig
	if path := configPath(c); path != "" {
		read, err := config.Read(path)
		if err != nil {
			return nil, err
		}
		cfg = read
	} else {
		defaults := config.DefaultRunConfig()
		cfg = &defaults
	}

	for flag, field := range map[string]*string{
		flagStates:     &cfg.Data.States,
		flagStateTimes: &cfg.Data.StateTimes,
		flagIMU:        &cfg.Data.IMU,
		flagDepth:      &cfg.Data.Depth,
		flagBag:        &cfg.Data.Bag,
		flagBagTopic:   &cfg.Data.BagIMUTopic,
	} {
		if c.IsSet(flag) {
			*field = c.String(flag)
		}
	}
	if c.IsSet(flagRunLength) {
		cfg.RunLength = c.Int(flagRunLength)
	}
	if c.IsSet(flagExhausted) {
		cfg.UntilExhausted = c.Bool(flagExhausted)
	}
	return cfg, nil
}

func runCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate("config"); err != nil {
		return err
	}

	logger := logging.NewLogger("auvslam")
	logger.SetLevel(cfg.Level())
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	if path := c.String(flagLogFile); path != "" {
		appender := logging.NewFileAppender(path, 10, 3)
		defer utils.UncheckedErrorFunc(appender.Close)
		logger.AddAppender(appender)
	}
	defer func() {
		//nolint:errcheck
		logger.Sync()
	}()

	ds, err := dataset.Load(cfg, logger.Sublogger("dataset"))
	if err != nil {
		return err
	}

	driver, err := frontend.NewDriver(cfg, ds.States, ds.IMU, logger.Sublogger("frontend"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	result, err := driver.Run(ctx)
	if err != nil {
		return reportRunError(err)
	}

	fmt.Fprintln(c.App.Writer, result.Summary.String())
	if path := c.String(flagPlot); path != "" {
		if err := viz.PlotTrajectory(result.Trajectory, nil, path); err != nil {
			return err
		}
		logger.Infow("trajectory plotted", "path", path)
	}
	return nil
}

func reportRunError(err error) error {
	var runErr *frontend.RunError
	if !errors.As(err, &runErr) {
		return err
	}
	return cli.Exit(fmt.Sprintf("run failed: category=%s epoch=%d last_solved_epoch=%d: %v",
		runErr.Category, runErr.Epoch, runErr.LastSolvedEpoch, runErr.Err), exitRunFailed)
}
