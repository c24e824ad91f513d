package cli

import (
	"context"
	"fmt"

	"github.com/juju/errors"
	"github.com/spf13/pflag"

	"github.com/wireline/wireline/server"
	"github.com/wireline/wireline/server/command"
	"github.com/wireline/wireline/server/logger"
)

type serverHandler struct {
	args struct {
		config string
	}

	log    *logger.Logger
	config server.Config
	props  Props
}

func (h *serverHandler) RegisterFlags(c *command.Command, flags *pflag.FlagSet) {
	flags.StringVarP(&h.args.config, "config", "c", "", "config file to use")
}

func (h *serverHandler) Handle(ctx context.Context, args []string) error {
	if err := h.configure(); err != nil {
		return errors.Trace(err)
	}

	s := server.New(server.Params{
		Log:     h.log,
		Config:  h.config,
		Version: h.props.Version,
	})

	return errors.Trace(s.Start(ctx))
}

func (h *serverHandler) configure() (err error) {
	configFiles := []string{}
	if h.args.config != "" {
		configFiles = append(configFiles, h.args.config)
	}

	h.config, err = server.ReadConfig(configFiles)
	if err != nil {
		return errors.Annotate(err, "read config")
	}

	h.log.Info(fmt.Sprintf("Using config: %+v", h.config), nil)

	return nil
}

func newServerCmd(props Props) *command.Command {
	h := &serverHandler{
		log:   props.Log,
		props: props,
	}

	return command.New(command.Params{
		Name:         "server",
		Desc:         "Starts the wireline server (default)",
		FlagRegistry: h,
		Handler:      h,
		SubCommands:  nil,
	})
}
