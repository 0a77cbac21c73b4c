package main

import (
	"github.com/spf13/cobra"
	"github.com/tbxark/intakeagent/config"
	"github.com/tbxark/intakeagent/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "intakeagent",
		Short:         "Conversational task intake agent",
		Long:          "intakeagent walks a client through a fixed sequence of steps and collects a task description by chatting with an LLM.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a JSON or YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level from the config")
	cmd.AddCommand(
		newServeCommand(opts),
		newChatCommand(opts),
		newSchemaCommand(),
	)
	return cmd
}

// load reads the config and installs the logger. The caller closes the returned closer.
func (o *rootOptions) load() (*config.Config, func(), error) {
	conf, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		conf.Log.Level = o.logLevel
	}
	closer, err := logging.Setup(conf.Log)
	if err != nil {
		return nil, nil, err
	}
	return conf, func() { _ = closer.Close() }, nil
}
