package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/folio/folio/internal/contact"
	"github.com/folio/folio/internal/email"
	"github.com/folio/folio/internal/logger"
	"github.com/folio/folio/internal/notify"
	folio "github.com/folio/folio/sdk/go"
)

var sendFlags struct {
	name    string
	email   string
	message string
	server  string
}

var sendCmd = &cobra.Command{
	Use:          "send",
	Short:        "Send one contact message through the configured provider",
	SilenceUsage: true,
	RunE:         runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendFlags.name, "name", "", "sender name")
	sendCmd.Flags().StringVar(&sendFlags.email, "email", "", "sender email address")
	sendCmd.Flags().StringVar(&sendFlags.message, "message", "", "message body")
	sendCmd.Flags().StringVar(&sendFlags.server, "server", "", "submit through a running folio server instead of the local config")
}

func runSend(cmd *cobra.Command, args []string) error {
	if sendFlags.server != "" {
		return sendRemote(cmd)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.NewWithWriter(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	deliverer, err := email.NewDeliverer(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize email delivery: %w", err)
	}

	out := cmd.OutOrStdout()
	printer := notify.NotifierFunc(func(_ context.Context, n notify.Notification) {
		fmt.Fprintf(out, "[%s] %s\n", n.Kind, n.Message)
	})

	sub := contact.New(contactSettings(cfg), deliverer, printer, log)
	defer sub.Close()

	for field, value := range map[string]string{
		contact.FieldName:    sendFlags.name,
		contact.FieldEmail:   sendFlags.email,
		contact.FieldMessage: sendFlags.message,
	} {
		if err := sub.HandleFieldChange(field, value); err != nil {
			return err
		}
	}

	done, err := sub.Submit(ctx)
	if err != nil {
		return err
	}
	return <-done
}

// sendRemote submits through the HTTP API of a running server.
func sendRemote(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client := folio.NewClient(folio.Config{BaseURL: sendFlags.server})
	defer client.EndSession(context.WithoutCancel(ctx))

	res, err := client.Submit(ctx, folio.Form{
		Name:    sendFlags.name,
		Email:   sendFlags.email,
		Message: sendFlags.message,
	})
	if apiErr, ok := folio.IsAPIError(err); ok && apiErr.Result != nil {
		res = apiErr.Result
	}
	if res != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", res.Notification.Kind, res.Notification.Message)
	}
	return err
}
