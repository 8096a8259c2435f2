package commands

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/ormmeta/internal/cli/ui"
	"github.com/conduit-lang/ormmeta/internal/orm/rowsource"
)

// columnLister returns the column names of each table, in the order of tables
type columnLister func(ctx context.Context, databaseURL string, tables []string) ([][]string, error)

func newColumnsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "columns [entity...]",
		Short: "Check that the database has a column for every property",
		Long: `Compare the columns of each entity type's table with its properties.

The table is the Table annotation of the entity type, or its name. A
property maps to the column named by its column name, ignoring case and
underscores. The database is DATABASE_URL or database.url from the
config; a postgres:// URL connects with pgx and a sqlite: URL opens the
SQLite file after the prefix.`,
		Example: `  # Check every entity type
  DATABASE_URL=postgres://localhost/shop ormmeta columns

  # Check two entity types against a SQLite file
  ormmeta columns customer order --config ormmeta.yml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := a.cfg.DatabaseURL()
			if url == "" {
				return fmt.Errorf("no database: set DATABASE_URL or database.url")
			}
			model, err := a.loadModel(cmd)
			if err != nil {
				return err
			}

			entityTypes := model.EntityTypes()
			if len(args) > 0 {
				entityTypes = nil
				for _, name := range args {
					et, err := a.findEntityType(cmd, model, name)
					if err != nil {
						return err
					}
					entityTypes = append(entityTypes, et)
				}
			}

			tables := make([]string, len(entityTypes))
			for i, et := range entityTypes {
				tables[i] = tableName(et)
			}
			columns, err := a.listColumns(cmd.Context(), url, tables)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			table := ui.NewTable(out, a.cfg.NoColor, "Entity", "Table", "Columns", "Missing")
			failed := 0
			for i, et := range entityTypes {
				missing := rowsource.MissingColumns(et, columns[i])
				status := "-"
				if len(missing) > 0 {
					failed++
					status = strings.Join(missing, ", ")
				}
				table.AddRow(et.Name(), tables[i], fmt.Sprint(len(columns[i])), status)
				a.logger.Debug("columns compared",
					zap.String("entity_type", et.Name()),
					zap.Strings("columns", columns[i]),
					zap.Strings("missing", missing))
			}
			table.Render()

			if failed > 0 {
				return fmt.Errorf("%d of %d entity type(s) have missing columns", failed, len(entityTypes))
			}
			ui.WriteSuccess(out, "every property has a column", a.cfg.NoColor)
			return nil
		},
	}
}

// listTableColumns reads the columns of each table from an empty result set
func listTableColumns(ctx context.Context, databaseURL string, tables []string) ([][]string, error) {
	if path, ok := strings.CutPrefix(databaseURL, "sqlite:"); ok {
		db, err := sql.Open("sqlite3", path)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return collectColumns(tables, func(query string) (rowsource.Rows, error) {
			return db.QueryContext(ctx, query)
		})
	}

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)
	return collectColumns(tables, func(query string) (rowsource.Rows, error) {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return nil, err
		}
		return rowsource.FromPgx(rows), nil
	})
}

func collectColumns(tables []string, query func(string) (rowsource.Rows, error)) ([][]string, error) {
	out := make([][]string, len(tables))
	for i, table := range tables {
		rows, err := query("SELECT * FROM " + pgx.Identifier{table}.Sanitize() + " LIMIT 0")
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", table, err)
		}
		cols, err := rows.Columns()
		closeErr := rows.Close()
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", table, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("table %s: %w", table, closeErr)
		}
		out[i] = cols
	}
	return out, nil
}
