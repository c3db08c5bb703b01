package cli

import (
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/warpdb/warp/internal/changelog"
	"github.com/warpdb/warp/internal/migrate"
)

func newDumpCmd() *cobra.Command {
	var (
		output     string
		schemaName string
		exclude    []string
	)

	cmd := &cobra.Command{
		Use:   "dump {structure|data|all}",
		Short: "Write a schema as a change log",
		Long: `Reverse-engineer the structure, the data, or both of a schema into an XML
change log that migrate can replay into any supported vendor.

"all" dumps the connection's own schema in replay order: structure, data,
then foreign keys.`,
		Example: `  warp dump structure -c prod -o schema.xml
  warp dump all --vendor sqlite --dsn shop.db > shop.xml`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"structure", "data", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, args[0], output, schemaName, exclude)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&schemaName, "schema", "", "Schema to dump (default: the connection's schema)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Tables to leave out")

	return cmd
}

func runDump(cmd *cobra.Command, kind, output, schemaName string, exclude []string) error {
	if kind == "all" && schemaName != "" {
		return fmt.Errorf("dump all always uses the connection's schema; set it in the connection instead of --schema")
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	dm := migrate.NewDumper(s.conn, s.templates, s.logger)
	dm.Exclude = slices.Concat(exclude, s.cfg.Migrate.ExcludedTables)
	if schemaName == "" {
		schemaName = s.conn.DefaultSchema()
	}

	ctx := cmd.Context()
	var l *changelog.ChangeLog
	switch kind {
	case "structure":
		l, err = dm.DumpStructure(ctx, schemaName)
	case "data":
		l, err = dm.DumpData(ctx, schemaName)
	case "all":
		l, err = dm.DumpAll(ctx)
	default:
		return fmt.Errorf("unknown dump kind %q (want structure, data or all)", kind)
	}
	if err != nil {
		return err
	}

	out, err := createOutput(cmd, output)
	if err != nil {
		return err
	}
	if err := changelog.Write(out, l); err != nil {
		out.Close()
		return fmt.Errorf("write change log: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	tables, rows := map[string]bool{}, 0
	for _, cs := range l.ChangeSets {
		for _, a := range cs.Actions {
			switch a.(type) {
			case changelog.CreateTable, changelog.Insert:
				tables[a.Target().Name] = true
			}
			if _, ok := a.(changelog.Insert); ok {
				rows++
			}
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Dumped %s: %s tables, %s rows in %d change sets\n",
		kind, humanize.Comma(int64(len(tables))), humanize.Comma(int64(rows)), len(l.ChangeSets))
	return nil
}
