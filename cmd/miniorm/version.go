package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leftmike/miniorm/sql"
)

func init() {
	miniormCmd.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number of Miniorm",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(sql.Version())
			},
		})
}
