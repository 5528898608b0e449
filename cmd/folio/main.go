package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/folio/folio/internal/config"
	"github.com/folio/folio/internal/contact"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Contact form backend for a portfolio site",
	// main reports the error itself
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func contactSettings(cfg *config.Config) contact.Settings {
	return contact.Settings{
		ServiceID:       cfg.Contact.ServiceID,
		TemplateID:      cfg.Contact.TemplateID,
		PublicKey:       cfg.Contact.PublicKey,
		CooldownSeconds: cfg.Contact.CooldownSeconds,
		TickInterval:    cfg.Contact.TickInterval,
		DeliveryTimeout: cfg.Contact.DeliveryTimeout,
	}
}
