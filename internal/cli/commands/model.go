package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/conduit-lang/ormmeta/internal/cli/ui"
	"github.com/conduit-lang/ormmeta/internal/orm/metadata"
	"github.com/conduit-lang/ormmeta/internal/orm/modelfile"
)

// errReported is returned after a command wrote its own diagnostics
var errReported = errors.New("see the messages above")

// loadModel builds the model described by the configured model file. The
// configured defaults are applied first so the file can override them.
func (a *app) loadModel(cmd *cobra.Command) (*metadata.Model, error) {
	path := a.cfg.ModelFile
	doc, err := modelfile.Load(path)
	if err != nil {
		ui.Write(cmd.ErrOrStderr(), ui.Message{
			Context: "model file rejected",
			Problem: path,
			Details: []string{err.Error()},
			NoColor: a.cfg.NoColor,
		})
		return nil, fmt.Errorf("load %s: %w", path, errReported)
	}

	model := metadata.NewModel(
		metadata.WithLogger(a.logger),
		metadata.WithChangeTrackingStrategy(a.cfg.ChangeTrackingStrategy()),
		metadata.WithPropertyAccessMode(a.cfg.PropertyAccessMode()),
	)
	if err := doc.Apply(model); err != nil {
		cmd.PrintErr(ui.ModelFileError(path, multierr.Errors(err), a.cfg.NoColor))
		return nil, fmt.Errorf("apply %s: %w", path, errReported)
	}
	return model, nil
}

// findEntityType returns the named entity type, reporting close matches
// when there is none
func (a *app) findEntityType(cmd *cobra.Command, model *metadata.Model, name string) (*metadata.EntityType, error) {
	if et := model.FindEntityType(name); et != nil {
		return et, nil
	}
	cmd.PrintErr(ui.EntityTypeNotFound(name, entityTypeNames(model), a.cfg.NoColor))
	return nil, fmt.Errorf("%w: %s", modelfile.ErrUnknownEntityType, name)
}

func entityTypeNames(model *metadata.Model) []string {
	var names []string
	for _, et := range model.EntityTypes() {
		names = append(names, et.Name())
	}
	return names
}

// tableName returns the Table annotation of et, or its name
func tableName(et *metadata.EntityType) string {
	if ann := et.FindAnnotation(metadata.AnnotationTableName); ann != nil {
		if s, ok := ann.Value().(string); ok && s != "" {
			return s
		}
	}
	return et.Name()
}
