package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfg "github.com/maastricht-university/talktime/config"
	"github.com/maastricht-university/talktime/logging"
	"github.com/maastricht-university/talktime/orchestrator"
	"github.com/maastricht-university/talktime/server"
)

type appState struct {
	configFile string
	envFile    string

	v      *viper.Viper
	cfg    *cfg.Root
	log    *logrus.Logger
	closer io.Closer
	out    io.Writer

	newProcessor func(c *cfg.Root, log logrus.FieldLogger) server.Processor
}

// Execute runs the talktime command line. The log file, if any, is closed
// on every exit path.
func Execute() error {
	app := newAppState()
	return app.execute(newRootCmd(app))
}

func (a *appState) execute(cmd *cobra.Command) (err error) {
	defer func() {
		if cerr := a.close(); err == nil {
			err = cerr
		}
	}()
	return cmd.Execute()
}

func (a *appState) close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

func newAppState() *appState {
	return &appState{
		v:   cfg.New(),
		out: os.Stdout,
		newProcessor: func(c *cfg.Root, log logrus.FieldLogger) server.Processor {
			return orchestrator.NewPipeline(c, log)
		},
	}
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "talktime",
		Short:         "Measure how long women and men speak in a recording",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.init(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&app.configFile, "config", "c", "", "Path to config.yaml (default: config/$CONFIG_ENV/config.yaml)")
	pf.StringVar(&app.envFile, "env-file", ".env", "Env file read before the environment (TOKEN=...); set variables win")
	pf.String("log-level", "", "Log level: debug|info|warn|error")
	pf.String("log-format", "", "Log format: text|json")
	_ = app.v.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = app.v.BindPFlag("logging.format", pf.Lookup("log-format"))

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newProcessCmd(app))
	cmd.AddCommand(newConfigCmd(app))

	return cmd
}

func (a *appState) init(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()

	if err := cfg.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	c, err := cfg.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	log, closer, err := logging.Setup(c.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	if used := a.v.ConfigFileUsed(); used != "" {
		log.WithField("file", used).Debug("config loaded")
	}
	a.cfg, a.log, a.closer = c, log, closer
	return nil
}

// ready is called by commands that talk to the model services.
func (a *appState) ready() error {
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
