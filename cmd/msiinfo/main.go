// Package main is the msiinfo CLI: argument parsing and subcommand
// dispatch over the msidb facade, grounded on cmd/smf/main.go's cobra
// root-command shape (one subcommand builder per verb, flags struct
// per command).
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"msidb/idt"
	"msidb/msidb"
	"msidb/summary"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "msiinfo",
		Short: "Inspect and edit Windows Installer database files",
	}

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(tablesCmd())
	rootCmd.AddCommand(streamsCmd())
	rootCmd.AddCommand(suminfoCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(transformCmd())
	rootCmd.AddCommand(mergeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "msiinfo:", err)
		os.Exit(exitCode(err))
	}
}

func tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables FILE",
		Short: "List the user tables in a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			db, err := msidb.Open(args[0], msidb.ReadOnly)
			if err != nil {
				return err
			}
			for _, name := range db.Store.TableNames() {
				if name == "_Tables" || name == "_Columns" {
					continue
				}
				fmt.Println(name)
			}
			return nil
		},
	}
}

func streamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streams FILE",
		Short: "List the raw streams and substorages in a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			db, err := msidb.Open(args[0], msidb.ReadOnly)
			if err != nil {
				return err
			}
			entries, err := db.Container().EnumChildren()
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Println(e.Name)
			}
			return nil
		},
	}
}

func suminfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suminfo FILE",
		Short: "Print the summary-information property set",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			db, err := msidb.Open(args[0], msidb.ReadOnly)
			if err != nil {
				return err
			}
			si, err := db.SummaryInfo()
			if err != nil {
				return err
			}
			for _, id := range summary.AllProperties() {
				v, ok := si.Get(id)
				if !ok {
					continue
				}
				fmt.Printf("%s: %s\n", summary.PropertyName(id), v.String())
			}
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var binDir string
	cmd := &cobra.Command{
		Use:   "export FILE TABLE",
		Short: "Export a table to an IDT text file on stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			db, err := msidb.Open(args[0], msidb.ReadOnly)
			if err != nil {
				return err
			}
			dir := binDir
			if dir == "" {
				dir = args[1]
			}
			w := bufio.NewWriter(os.Stdout)
			if err := idt.ExportTable(db.Store, args[1], w, dir); err != nil {
				return err
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&binDir, "bindir", "", "base directory; binary cell files go under DIR/TABLE/ (default: table name)")
	return cmd
}

func importCmd() *cobra.Command {
	var binDir string
	cmd := &cobra.Command{
		Use:   "import FILE IDTFILE",
		Short: "Import an IDT text file into a database, creating or replacing its table",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			db, err := msidb.Open(args[0], msidb.Transact)
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			dir := binDir
			if dir == "" {
				dir = strings.TrimSuffix(args[1], ".idt")
			}
			table, err := idt.ImportTable(db.Store, f, dir)
			if err != nil {
				return err
			}
			fmt.Printf("imported %s\n", table)
			return db.Commit()
		},
	}
	cmd.Flags().StringVar(&binDir, "bindir", "", "base directory; binary cell files are read from DIR/TABLE/ (default: IDT file name minus extension)")
	return cmd
}

func queryCmd() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "query FILE SQL",
		Short: "Run a single SQL statement and print any result rows",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			mode := msidb.ReadOnly
			if write {
				mode = msidb.Transact
			}
			db, err := msidb.Open(args[0], mode)
			if err != nil {
				return err
			}
			q, err := db.Prepare(args[1])
			if err != nil {
				return err
			}
			defer q.Close()
			if err := q.Execute(nil); err != nil {
				return err
			}
			if err := printResultSet(q); err != nil {
				return err
			}
			if write {
				return db.Commit()
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "open for writing and commit after execution")
	return cmd
}

func printResultSet(q *msidb.Query) error {
	rows, cols, err := q.Dimensions()
	if err != nil {
		return err
	}
	if cols == 0 {
		return nil
	}
	names := make([]string, cols)
	for c := 0; c < cols; c++ {
		info, err := q.ColumnInfo(c + 1)
		if err != nil {
			return err
		}
		names[c] = info.Name
	}
	fmt.Println(strings.Join(names, "\t"))
	for r := 0; r < rows; r++ {
		rec, err := q.GetRow(r + 1)
		if err != nil {
			return err
		}
		vals := make([]string, cols)
		for c := 0; c < cols; c++ {
			vals[c] = rec.GetString(c + 1)
		}
		fmt.Println(strings.Join(vals, "\t"))
	}
	return nil
}

func transformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform FILE MSTFILE",
		Short: "Apply a transform (.mst) to a database",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			db, err := msidb.Open(args[0], msidb.Transact)
			if err != nil {
				return err
			}
			if err := db.ApplyTransform(args[1]); err != nil {
				return err
			}
			return db.Commit()
		},
	}
	return cmd
}

func mergeCmd() *cobra.Command {
	var errTable string
	cmd := &cobra.Command{
		Use:   "merge FILE SRCFILE",
		Short: "Merge another database's tables into FILE",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			db, err := msidb.Open(args[0], msidb.Transact)
			if err != nil {
				return err
			}
			src, err := msidb.Open(args[1], msidb.ReadOnly)
			if err != nil {
				return err
			}
			if errTable == "" {
				errTable = "_TransformView"
			}
			if err := db.Merge(src, errTable); err != nil {
				return err
			}
			return db.Commit()
		},
	}
	cmd.Flags().StringVar(&errTable, "error-table", "", "table to record merge conflicts into (default _TransformView)")
	return cmd
}

// exitCode maps any error to the process exit code: 0 on success, 1 on
// any library error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
