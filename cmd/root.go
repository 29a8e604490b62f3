package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "chefbot"}

	root.AddCommand(serveCMD(), migrateCMD(), scrapeCMD())
	_ = root.Execute()
}
