package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "civicd"}

	root.AddCommand(serveCMD(), migrateCMD(), searchCMD())
	_ = root.Execute()
}
