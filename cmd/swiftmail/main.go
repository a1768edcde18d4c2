package main

import (
	"github.com/spf13/cobra"

	"github.com/swiftmailer/swiftmailer-sub001/cmd/swiftmail/cmd"
)

func main() {
	err := cmd.Execute()
	cobra.CheckErr(err)
}
