package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"reframe/internal/config"
)

// commandContext carries lazily resolved configuration and the API base URL
// shared by all subcommands.
type commandContext struct {
	apiFlag    *string
	configFlag *string

	once sync.Once
	cfg  *config.Config
	err  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{apiFlag: apiFlag, configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.once.Do(func() {
		c.cfg, _, _, c.err = config.Load(*c.configFlag)
	})
	return c.cfg, c.err
}

// baseURL resolves the daemon endpoint: the --api flag wins, otherwise the
// configured bind address.
func (c *commandContext) baseURL() (string, error) {
	if api := strings.TrimSpace(*c.apiFlag); api != "" {
		if strings.HasPrefix(api, "http://") || strings.HasPrefix(api, "https://") {
			return strings.TrimRight(api, "/"), nil
		}
		return "http://" + strings.TrimRight(api, "/"), nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	bind := strings.TrimSpace(cfg.Server.Bind)
	if bind == "" {
		return "", fmt.Errorf("no daemon address: set server.bind or pass --api")
	}
	if strings.HasPrefix(bind, ":") {
		bind = "127.0.0.1" + bind
	}
	return "http://" + bind, nil
}

func (c *commandContext) client() (*client, error) {
	base, err := c.baseURL()
	if err != nil {
		return nil, err
	}
	return newClient(base), nil
}

func newRootCommand() *cobra.Command {
	var apiFlag string
	var configFlag string

	ctx := newCommandContext(&apiFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "reframe",
		Short:         "Reframe motion-editing pipeline CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiFlag, "api", "", "Daemon API address (host:port or URL)")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newHealthCommand(ctx))
	rootCmd.AddCommand(newDaemonCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
