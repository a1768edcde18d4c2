package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFlushCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Sends the spooled messages through the spool's delivery transport",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()

			s, err := root.cfg.NewSpool()
			if err != nil {
				return err
			}
			if closer, ok := s.(interface{ Close() error }); ok {
				defer func() { _ = closer.Close() }()
			}

			d, err := root.cfg.DeliveryTransport(ctx, root.logger, nil)
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			sent, failed, err := s.FlushQueue(ctx, d.Transport)
			if stopErr := d.Transport.Stop(ctx); stopErr != nil {
				root.logger.Warn("failed to stop transport", "error", stopErr)
			}

			fmt.Fprintf(c.OutOrStdout(), "accepted %d\n", sent)
			for _, f := range failed {
				fmt.Fprintf(c.OutOrStdout(), "refused %s\n", f)
			}
			return err
		},
	}
}
