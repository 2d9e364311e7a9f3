package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/RowanDark/wraith/internal/cipher"
	"github.com/RowanDark/wraith/internal/config"
)

func loadRecipes(dir string) (*cipher.RecipeManager, error) {
	rm := cipher.NewRecipeManager(dir)
	if err := rm.LoadRecipes(); err != nil {
		return nil, err
	}
	return rm, nil
}

func (a *app) lookupRecipe(cfg config.Config, name string) (*cipher.Recipe, error) {
	rm, err := loadRecipes(cfg.RecipeDir)
	if err != nil {
		return nil, fmt.Errorf("load recipes: %w", err)
	}
	r, ok := rm.GetRecipe(name)
	if !ok {
		return nil, fmt.Errorf("recipe %q not found in %s", name, cfg.RecipeDir)
	}
	return r, nil
}

// recipeStore resolves -dir, falling back to recipe_dir from the config.
func (a *app) recipeStore(dir string) (*cipher.RecipeManager, bool) {
	if dir == "" {
		cfg, ok := a.loadConfig()
		if !ok {
			return nil, false
		}
		dir = cfg.RecipeDir
	}
	rm, err := loadRecipes(dir)
	if err != nil {
		fmt.Fprintf(a.stderr, "load recipes: %v\n", err)
		return nil, false
	}
	return rm, true
}

func (a *app) runRecipeSave(args []string) int {
	fs := a.flagSet("recipe save")
	dir := fs.String("dir", "", "recipe directory (defaults to recipe_dir)")
	layersFlag := fs.String("layers", "", "comma-separated layers in the order they are applied")
	desc := fs.String("desc", "", "description")
	tags := fs.String("tags", "", "comma-separated tags")
	positional, err := parse(fs, args)
	if err != nil {
		return 2
	}
	if len(positional) != 1 {
		fmt.Fprintln(a.stderr, "recipe save requires a name")
		return 2
	}
	layers, err := cipher.ParseLayers(splitList(*layersFlag))
	if err != nil || len(layers) == 0 {
		fmt.Fprintln(a.stderr, "recipe save requires -layers, e.g. -layers rot13,base64")
		return 2
	}
	rm, ok := a.recipeStore(*dir)
	if !ok {
		return 1
	}
	recipe := &cipher.Recipe{
		Name:        positional[0],
		Description: *desc,
		Tags:        splitList(*tags),
		Layers:      layers,
	}
	if existing, ok := rm.GetRecipe(recipe.Name); ok {
		recipe.CreatedAt = existing.CreatedAt
	}
	if err := rm.SaveRecipe(recipe); err != nil {
		fmt.Fprintf(a.stderr, "save recipe: %v\n", err)
		return 1
	}
	fmt.Fprintf(a.stdout, "saved recipe %s (%s)\n", recipe.Name, cipher.ChainLabel(recipe.Layers))
	return 0
}

func (a *app) runRecipeList(args []string) int {
	fs := a.flagSet("recipe list")
	dir := fs.String("dir", "", "recipe directory (defaults to recipe_dir)")
	query := fs.String("q", "", "only recipes whose name, description or tags contain this text")
	if _, err := parse(fs, args); err != nil {
		return 2
	}
	rm, ok := a.recipeStore(*dir)
	if !ok {
		return 1
	}
	recipes := rm.ListRecipes()
	if *query != "" {
		recipes = rm.SearchRecipes(*query)
	}
	if len(recipes) == 0 {
		fmt.Fprintln(a.stdout, "no recipes saved")
		return 0
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLAYERS\tTAGS\tDESCRIPTION")
	for _, r := range recipes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, cipher.ChainLabel(r.Layers), orDash(strings.Join(r.Tags, ",")), orDash(r.Description))
	}
	if err := tw.Flush(); err != nil {
		return 1
	}
	return 0
}

func (a *app) runRecipeShow(args []string) int {
	fs := a.flagSet("recipe show")
	dir := fs.String("dir", "", "recipe directory (defaults to recipe_dir)")
	positional, err := parse(fs, args)
	if err != nil {
		return 2
	}
	if len(positional) != 1 {
		fmt.Fprintln(a.stderr, "recipe show requires a name")
		return 2
	}
	rm, ok := a.recipeStore(*dir)
	if !ok {
		return 1
	}
	r, found := rm.GetRecipe(positional[0])
	if !found {
		fmt.Fprintf(a.stderr, "recipe %q not found\n", positional[0])
		return 2
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		fmt.Fprintf(a.stderr, "encode recipe: %v\n", err)
		return 1
	}
	a.stdout.Write(data)
	return 0
}

func (a *app) runRecipeDelete(args []string) int {
	fs := a.flagSet("recipe delete")
	dir := fs.String("dir", "", "recipe directory (defaults to recipe_dir)")
	positional, err := parse(fs, args)
	if err != nil {
		return 2
	}
	if len(positional) != 1 {
		fmt.Fprintln(a.stderr, "recipe delete requires a name")
		return 2
	}
	rm, ok := a.recipeStore(*dir)
	if !ok {
		return 1
	}
	if err := rm.DeleteRecipe(positional[0]); err != nil {
		fmt.Fprintln(a.stderr, err)
		return 1
	}
	fmt.Fprintf(a.stdout, "deleted recipe %s\n", positional[0])
	return 0
}
