package commands

import "github.com/spf13/cobra"

// NewRootCmd creates the vidtrend root command with every subcommand.
func NewRootCmd(version string) *cobra.Command {
	Version = version
	root := &cobra.Command{
		Use:   "vidtrend",
		Short: "Trending video snapshot pipeline",
		Long: `vidtrend extracts trending-video snapshots, normalizes them into a
canonical schema with derived engagement metrics, archives them to a blob
store, loads them into a relational store and serves dashboard queries.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String(ConfigDirFlag, ".", "Directory containing vidtrend.yaml")

	root.AddCommand(
		NewInitCmd(),
		NewTransformCmd(),
		NewLoadCmd(),
		NewRunCmd(),
		NewReportCmd(),
		NewStatusCmd(),
		NewServeCmd(),
		NewScheduleCmd(),
	)
	return root
}
