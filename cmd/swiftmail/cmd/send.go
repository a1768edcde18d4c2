package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSendCmd(root *rootOptions) *cobra.Command {
	opts := &composeOptions{}

	c := &cobra.Command{
		Use:   "send",
		Short: "Sends the message described by the flags with the configured transport",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			m, err := opts.compose(c, root.cfg.MessageConfig())
			if err != nil {
				return err
			}

			ctx := c.Context()
			b, err := root.cfg.NewTransport(ctx, root.logger, nil)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			sent, failed, err := b.Transport.Send(ctx, m)
			if stopErr := b.Transport.Stop(ctx); stopErr != nil {
				root.logger.Warn("failed to stop transport", "error", stopErr)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(c.OutOrStdout(), "accepted %d\n", sent)
			for _, f := range failed {
				fmt.Fprintf(c.OutOrStdout(), "refused %s\n", f)
			}
			if sent == 0 {
				return fmt.Errorf("no recipients accepted")
			}
			return nil
		},
	}
	opts.addFlags(c)

	return c
}
