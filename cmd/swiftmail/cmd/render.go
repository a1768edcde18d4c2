package cmd

import (
	"github.com/spf13/cobra"
)

func newRenderCmd(root *rootOptions) *cobra.Command {
	opts := &composeOptions{}

	c := &cobra.Command{
		Use:   "render",
		Short: "Writes the message described by the flags to stdout",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			m, err := opts.compose(c, root.cfg.MessageConfig())
			if err != nil {
				return err
			}

			_, err = m.WriteTo(c.OutOrStdout())
			return err
		},
	}
	opts.addFlags(c)

	return c
}
