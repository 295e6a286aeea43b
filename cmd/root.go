// Package cmd defines the helpdesk command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "helpdesk",
	Short:         "Campus helpdesk chatbot backend",
	Long:          "helpdesk runs the campus helpdesk assistant: a streaming chat API grounded on ingested knowledge documents.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
