package main

import (
	"log"

	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:   "lostfound",
		Short: "Campus lost-and-found backend",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")
	root.AddCommand(serveCmd(), migrateCmd())
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}
