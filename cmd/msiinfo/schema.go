package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"msidb/msidb"
	"msidb/schema"
)

// tomlManifest is the top-level document of a declarative schema
// manifest, grounded on internal/parser/toml's schemaFile shape
// (Database/Tables as top-level keys, one [[tables]] block per table).
type tomlManifest struct {
	Database tomlDatabase `toml:"database"`
	Tables   []tomlTable  `toml:"tables"`
}

type tomlDatabase struct {
	Codepage int `toml:"codepage"`
}

type tomlTable struct {
	Name    string       `toml:"name"`
	Columns []tomlColumn `toml:"columns"`
}

type tomlColumn struct {
	Name        string `toml:"name"`
	Type        string `toml:"type"` // CHAR, LONGCHAR, INT, LONG, OBJECT
	Key         bool   `toml:"key"`
	Nullable    bool   `toml:"nullable"`
	Localizable bool   `toml:"localizable"`
	Temporary   bool   `toml:"temporary"`
}

func (c tomlColumn) toSchemaColumn() (*schema.Column, error) {
	var t schema.TypeFlags
	switch c.Type {
	case "CHAR", "LONGCHAR":
		t = schema.NewTypeFlags(schema.Width24, true, c.Key, c.Nullable, c.Localizable, c.Temporary, false)
	case "LONG":
		t = schema.NewTypeFlags(schema.Width32, false, c.Key, c.Nullable, c.Localizable, c.Temporary, false)
	case "OBJECT":
		t = schema.NewTypeFlags(schema.Width16, false, c.Key, c.Nullable, c.Localizable, c.Temporary, true)
	case "INT", "SHORT", "":
		t = schema.NewTypeFlags(schema.Width16, false, c.Key, c.Nullable, c.Localizable, c.Temporary, false)
	default:
		return nil, fmt.Errorf("unknown column type %q for column %q", c.Type, c.Name)
	}
	return &schema.Column{Name: c.Name, Type: t}, nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init FILE MANIFEST.toml",
		Short: "Create a new database whose tables are declared in a TOML schema manifest",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			manifest, err := loadManifest(args[1])
			if err != nil {
				return err
			}
			codepage := manifest.Database.Codepage
			if codepage == 0 {
				codepage = 1252
			}
			db, err := msidb.CreateDatabase(args[0], codepage)
			if err != nil {
				return err
			}
			for _, table := range manifest.Tables {
				cols := make([]*schema.Column, len(table.Columns))
				for i, tc := range table.Columns {
					col, err := tc.toSchemaColumn()
					if err != nil {
						return err
					}
					cols[i] = col
				}
				if err := db.Store.CreateTable(table.Name, cols, schema.Persistent); err != nil {
					return fmt.Errorf("table %q: %w", table.Name, err)
				}
			}
			return db.Commit()
		},
	}
}

func loadManifest(path string) (*tomlManifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m tomlManifest
	if _, err := toml.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}
