/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "authserver",
	Short: "Identity and authorization API server",
	Long: `authserver is the identity and authorization backend. It unifies
local email/password accounts, Google and GitHub OAuth sign-in, and OTP
email verification behind one account model, and issues signed session
tokens carrying a role claim.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
