// Package main is the face-notify relay.
//
// Usage:
//
//	face-notify [--config file] serve
//	face-notify [--config file] publish --file batch.json [--request]
//
// Configuration is read from the optional YAML/JSON file and FACENOTIFY_*
// environment variables, e.g. FACENOTIFY_REGISTRY_BACKEND=redis.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "face-notify",
	Short:         "Real-time face recognition notification relay",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml or json)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(publishCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
