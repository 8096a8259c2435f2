package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/ormmeta/internal/cli/ui"
	"github.com/conduit-lang/ormmeta/internal/orm/metadata"
)

func newSlotsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "slots <entity>",
		Short: "Show the change tracking slots of an entity type",
		Long: `Show the slots each member of an entity type occupies in the change
tracker's snapshot structures, followed by the size of each structure.

A dash means the member has no slot of that kind.`,
		Example: `  ormmeta slots order`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := a.loadModel(cmd)
			if err != nil {
				return err
			}
			et, err := a.findEntityType(cmd, model, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			noColor := a.cfg.NoColor
			ui.Header(out, et.Name(), noColor)

			table := ui.NewTable(out, noColor, "Member", "Kind", "Index", "Original", "Shadow", "Relationship", "StoreGenerated")
			for _, p := range et.Properties() {
				table.AddRow(slotRow(p)...)
			}
			for _, nav := range et.Navigations() {
				table.AddRow(slotRow(nav)...)
			}
			table.Render()
			fmt.Fprintln(out)

			counts := et.Counts()
			kv := ui.NewKeyValueTable(out, noColor)
			kv.AddRow("Properties", strconv.Itoa(counts.PropertyCount))
			kv.AddRow("Navigations", strconv.Itoa(counts.NavigationCount))
			kv.AddRow("Original values", strconv.Itoa(counts.OriginalValueCount))
			kv.AddRow("Shadow values", strconv.Itoa(counts.ShadowCount))
			kv.AddRow("Relationship snapshot", strconv.Itoa(counts.RelationshipCount))
			kv.AddRow("Store generated", strconv.Itoa(counts.StoreGeneratedCount))
			kv.Render()
			return nil
		},
	}
}

func slotRow(member metadata.PropertyBase) []string {
	idx := member.PropertyIndexes()
	return []string{
		member.Name(),
		member.Kind().String(),
		slot(idx.Index),
		slot(idx.OriginalValueIndex),
		slot(idx.ShadowIndex),
		slot(idx.RelationshipIndex),
		slot(idx.StoreGenerationIndex),
	}
}

func slot(i int) string {
	if i < 0 {
		return "-"
	}
	return strconv.Itoa(i)
}
