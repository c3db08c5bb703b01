package cli

import (
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/warpdb/warp/internal/changelog"
	"github.com/warpdb/warp/internal/migrate"
)

func readChangeLog(path string) (*changelog.ChangeLog, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	l, err := changelog.Read(in)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return l, nil
}

func newMigrateCmd() *cobra.Command {
	var (
		schemaName string
		dryRun     bool
		alwaysRun  []string
	)

	cmd := &cobra.Command{
		Use:   "migrate <changelog.xml>",
		Short: "Apply the pending change sets of a change log",
		Long: `Apply every change set of the change log that the target database has not
recorded yet. Each change set commits on its own together with its history
record, so an interrupted run resumes where it stopped. A recorded change set
whose content changed aborts the run.`,
		Example: `  warp migrate -c staging changes.xml
  warp migrate -c staging --dry-run changes.xml
  warp migrate -c staging --always-run refresh-views changes.xml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, args[0], schemaName, dryRun, alwaysRun)
		},
	}

	cmd.Flags().StringVar(&schemaName, "schema", "", "Schema to migrate, created when missing")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the statements instead of executing them")
	cmd.Flags().StringSliceVar(&alwaysRun, "always-run", nil, "Change set ids that run on every migration")

	return cmd
}

func runMigrate(cmd *cobra.Command, path, schemaName string, dryRun bool, alwaysRun []string) error {
	l, err := readChangeLog(path)
	if err != nil {
		return err
	}
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	always := slices.Concat(alwaysRun, s.cfg.Migrate.AlwaysRun)
	opts := migrate.Options{
		Schema:    schemaName,
		DryRun:    dryRun,
		AlwaysRun: func(id string) bool { return slices.Contains(always, id) },
	}
	res, err := migrate.NewMigrator(s.conn, s.templates, s.logger).Migrate(cmd.Context(), l, opts)
	if res != nil && dryRun {
		out := cmd.OutOrStdout()
		for _, cs := range res.ChangeSets {
			if cs.Outcome == migrate.Skipped {
				continue
			}
			fmt.Fprintf(out, "-- change set %s (%s)\n", cs.ID, cs.Outcome)
			for _, stmt := range cs.Statements {
				fmt.Fprintf(out, "%s;\n", stmt)
			}
		}
	}
	if err != nil {
		return err
	}

	verb := "Applied"
	if dryRun {
		verb = "Would apply"
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s change sets (%d rerun, %s already applied)\n", verb,
		humanize.Comma(int64(res.Count(migrate.Applied))), res.Count(migrate.Rerun),
		humanize.Comma(int64(res.Count(migrate.Skipped))))
	return nil
}

func newImportCmd() *cobra.Command {
	var (
		schemaName string
		exclude    []string
	)

	cmd := &cobra.Command{
		Use:   "import <changelog.xml>",
		Short: "Replace the data of an existing schema",
		Long: `Empty every table of the schema and load the insert actions of a change log.
Foreign keys are suspended for the load and restored afterwards, also when
the load fails. Any action other than an insert is rejected.`,
		Example: `  warp dump data -c prod -o data.xml
  warp import -c staging --exclude audit_log data.xml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], schemaName, exclude)
		},
	}

	cmd.Flags().StringVar(&schemaName, "schema", "", "Schema to load into (must exist)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Tables to leave untouched")

	return cmd
}

func runImport(cmd *cobra.Command, path, schemaName string, exclude []string) error {
	l, err := readChangeLog(path)
	if err != nil {
		return err
	}
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := migrate.ImportOptions{
		Schema:  schemaName,
		Exclude: slices.Concat(exclude, s.cfg.Migrate.ExcludedTables),
	}
	res, err := migrate.NewImporter(s.conn, s.templates, s.logger).Import(cmd.Context(), l, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Imported %s rows into %s tables (%d foreign keys restored)\n",
		humanize.Comma(int64(res.Rows)), humanize.Comma(int64(res.Tables)), res.ForeignKeys)
	return nil
}
