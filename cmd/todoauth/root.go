package main

import (
	"github.com/spf13/cobra"

	"github.com/jonwraymond/todoauth/config"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configFile string
}

func (o *rootOptions) loaderOptions() []config.LoaderOption {
	if o.configFile == "" {
		return nil
	}
	return []config.LoaderOption{config.WithFile(o.configFile)}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "todoauth",
		Short: "todoauth - todo API with stateless token authentication",
		Long: `todoauth serves a todo API protected by signed bearer tokens.

Configuration:
  Config is loaded from todoauth.yaml in the current directory,
  $HOME/.todoauth/, or /etc/todoauth/.

  Environment variables override config values with the TODOAUTH_ prefix.
  Example: TODOAUTH_AUTH_JWT_SECRET=... overrides auth.jwt.secret

Commands:
  serve          Start the API and ops listeners
  hash-password  Print the argon2id hash of a password
  version        Print version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: ./todoauth.yaml)")

	root.AddCommand(
		newServeCmd(opts),
		newHashPasswordCmd(),
		newVersionCmd(),
	)
	return root
}
