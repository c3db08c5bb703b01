package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/warpdb/warp/internal/script"
)

func newExecCmd() *cobra.Command {
	var terminate bool

	cmd := &cobra.Command{
		Use:   "exec <script.sql>",
		Short: "Run a SQL script statement by statement",
		Long: `Split a SQL script on semicolons outside string literals and comments and
execute each statement. Use "-" to read the script from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, args[0], terminate)
		},
	}

	cmd.Flags().BoolVar(&terminate, "terminate-on-error", false, "Stop at the first failing statement (default from config)")

	return cmd
}

func runExec(cmd *cobra.Command, path string, terminate bool) error {
	in, err := openInput(path)
	if err != nil {
		return err
	}
	defer in.Close()

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if !cmd.Flags().Changed("terminate-on-error") {
		terminate = s.cfg.Migrate.TerminateOnError
	}
	runner := &script.Runner{DB: s.conn.DB(), TerminateOnError: terminate, Logger: s.logger}
	res, err := runner.Run(cmd.Context(), in)
	fmt.Fprintf(cmd.ErrOrStderr(), "Executed %s statements, %s failed\n",
		humanize.Comma(int64(res.Executed)), humanize.Comma(int64(res.Failed)))
	return err
}
