package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List spaces and their files",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new space",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return container.Workspace.CreateSpace(cmd.Context(), args[0])
	},
}

var indexCmd = &cobra.Command{
	Use:   "index <file>",
	Short: "Index a file so chat can use its content (admin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

func runList(cmd *cobra.Command, args []string) error {
	if err := container.Workspace.RefreshAll(cmd.Context()); err != nil {
		return err
	}

	spaces := container.Workspace.Spaces()
	if len(spaces) == 0 {
		fmt.Println("No spaces yet. Create one with: spaces create <name>")
		return nil
	}

	bold := color.New(color.Bold)
	for _, sp := range spaces {
		bold.Printf("%s", sp.Name)
		fmt.Printf("  %d files, %d indexed, %d not indexed\n", sp.TotalFiles(), sp.IndexedFiles(), sp.NotIndexedFiles())
		for _, f := range sp.Files {
			mark := color.YellowString("pending")
			if f.IsIndexed {
				mark = color.GreenString("indexed")
			}
			fmt.Printf("  - %s [%s]\n", f.Name, mark)
		}
	}
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	if !cfg.App.AdminMode {
		return errors.New("indexing is only available with SPACES_ADMIN_MODE=true")
	}
	if err := selectTarget(cmd.Context()); err != nil {
		return err
	}
	return container.Workspace.IndexFile(cmd.Context(), container.Workspace.Selection().SpaceName, args[0])
}

// selectTarget refreshes the workspace and applies --space and --file.
func selectTarget(ctx context.Context) error {
	store := container.Workspace
	if err := store.RefreshAll(ctx); err != nil {
		return err
	}
	if spaceName != "" {
		if err := store.SelectSpace(spaceName); err != nil {
			return err
		}
	}
	if !store.Selection().HasSpace() {
		return errors.New("no spaces available; create one first")
	}
	if fileName != "" && !store.SelectFile(fileName) {
		return fmt.Errorf("file %q not found in space %q", fileName, store.Selection().SpaceName)
	}
	return nil
}
