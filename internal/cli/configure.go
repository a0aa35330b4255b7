package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/tabgate/internal/config"
)

var (
	confPort       int
	confHost       string
	confSecret     string
	confBackend    string
	confMCPCommand string
	confDataDir    string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write daemon configuration",
	Long: `Update the tabgate configuration file from flags.
Only the flags you pass are changed; everything else keeps its current value.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().IntVar(&confPort, "port", 0, "gateway port")
	configureCmd.Flags().StringVar(&confHost, "host", "", "gateway bind host")
	configureCmd.Flags().StringVar(&confSecret, "shared-secret", "", "gateway shared secret")
	configureCmd.Flags().StringVar(&confBackend, "backend", "", "browser backend (local or mcp)")
	configureCmd.Flags().StringVar(&confMCPCommand, "mcp-command", "", "mcp server command")
	configureCmd.Flags().StringVar(&confDataDir, "data-dir", "", "data directory")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if confPort != 0 {
		cfg.Gateway.Port = confPort
	}
	if confHost != "" {
		cfg.Gateway.Host = confHost
	}
	if confSecret != "" {
		cfg.Gateway.SharedSecret = confSecret
	}
	if confBackend != "" {
		cfg.Browser.Backend = confBackend
	}
	if confMCPCommand != "" {
		cfg.Browser.MCP.Command = confMCPCommand
	}
	if confDataDir != "" {
		cfg.DataDir = confDataDir
	}

	validator := config.NewValidator()
	if confBackend != "" {
		if err := validator.ValidateBackend(cfg.Browser.Backend); err != nil {
			return err
		}
	}
	if confPort != 0 {
		if err := validator.ValidatePort(cfg.Gateway.Port); err != nil {
			return err
		}
	}
	if confSecret != "" {
		if err := validator.ValidateSharedSecret(cfg.Gateway.SharedSecret); err != nil {
			return err
		}
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Configuration written to %s\n", loader.GetConfigPath())
	return nil
}
