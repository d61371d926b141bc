package cli

import (
	"github.com/dmitrijs2005/notekeeper/internal/flagx"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree around a.
func NewRootCmd(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "notekeeper",
		Short: "Command-line client for the notekeeper auth server",
		Long: `notekeeper signs you in to a notekeeper server and keeps the token pair
in a local session file (mode 0600).

Environment Variables:
  NOTEKEEPER_SERVER        API base URL (default: http://127.0.0.1:8080)
  NOTEKEEPER_SESSION_FILE  session file path
  ` + flagx.ConfigPathEnv + `        JSON config file`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.out = cmd.OutOrStdout()
			a.connect()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.config.ServerURL, "server", "a", a.config.ServerURL, "API base URL")
	pf.StringVarP(&a.config.SessionFile, "session-file", "s", a.config.SessionFile, "session file path")
	pf.DurationVar(&a.config.RequestTimeout, "timeout", a.config.RequestTimeout, "HTTP request timeout")
	// Read earlier by config.LoadConfig; declared so cobra accepts it.
	pf.StringP("config", "c", "", "JSON config file")

	root.AddCommand(
		newRegisterCmd(a),
		newLoginCmd(a),
		newRefreshCmd(a),
		newWhoamiCmd(a),
		newLogoutCmd(a),
	)
	return root
}
