package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mirepoix/souschef/internal/config"
	"github.com/mirepoix/souschef/internal/recipe"
)

func newRecipesCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recipes",
		Short: "List the recipes found in the recipe directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, cleanup, err := buildLogger(root, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			src := recipe.NewMemorySource(log)
			if err := recipe.LoadDir(cfg.RecipeDir, src, log); err != nil {
				return err
			}

			summaries, err := src.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Printf("no recipes in %s\n", cfg.RecipeDir)
				return nil
			}
			for _, r := range summaries {
				line := fmt.Sprintf("%-24s %s", r.ID, r.Title)
				if r.Cuisine != "" {
					line += " (" + r.Cuisine + ")"
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}
