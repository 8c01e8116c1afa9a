package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/catalog"
	"github.com/roach88/cascade/internal/species"
)

// CatalogOptions holds options for the catalog command.
type CatalogOptions struct {
	*RootOptions
}

// SpeciesInfo is one catalog entry in listings.
type SpeciesInfo struct {
	Name   string      `json:"name"`
	PDG    int32       `json:"pdg"`
	Mass   float64     `json:"mass"`
	Width  float64     `json:"width"`
	Charge int         `json:"charge"`
	Stable bool        `json:"stable"`
	Decays []DecayInfo `json:"decays,omitempty"`
}

// DecayInfo is one decay channel in listings.
type DecayInfo struct {
	Ratio     float64  `json:"ratio"`
	Daughters []string `json:"daughters"`
}

// CatalogResult is the payload of the catalog command.
type CatalogResult struct {
	Source  string        `json:"source"`
	Count   int           `json:"count"`
	Species []SpeciesInfo `json:"species"`
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog [path]",
		Short: "List the species of a particle catalog",
		Long: `List the species of a particle catalog.

Without a path the built-in catalog is shown. A path may name a single
CUE file or a directory of them; either is compiled and checked the
same way the run command would.

Exit codes:
  0 - catalog compiled
  1 - catalog invalid
  2 - command error (path not readable)

Examples:
  cascade catalog                # built-in species
  cascade catalog hadrons.cue
  cascade catalog catalogs/ --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return listCatalog(cmd, path, opts)
		},
	}

	return cmd
}

func listCatalog(cmd *cobra.Command, path string, opts *CatalogOptions) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	tab, source, err := resolveCatalog(path)
	if err != nil {
		if os.IsNotExist(err) {
			_ = formatter.Error("CATALOG_UNREADABLE", fmt.Sprintf("cannot read %s", path), err.Error())
			return NewExitError(ExitCommandError, fmt.Sprintf("cannot read %s", path))
		}
		_ = formatter.Error("CATALOG_INVALID", err.Error(), nil)
		return NewExitError(ExitFailure, "catalog invalid")
	}

	result := CatalogResult{
		Source:  source,
		Count:   tab.Len(),
		Species: describeSpecies(tab),
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Catalog: %s (%d species)\n\n", result.Source, result.Count)
	fmt.Fprintf(w, "%-8s %6s %8s %8s %7s %7s\n", "NAME", "PDG", "MASS", "WIDTH", "CHARGE", "STABLE")
	for _, sp := range result.Species {
		stable := "yes"
		if !sp.Stable {
			stable = "no"
		}
		fmt.Fprintf(w, "%-8s %6d %8.4f %8.4f %+7d %7s\n", sp.Name, sp.PDG, sp.Mass, sp.Width, sp.Charge, stable)
		for _, d := range sp.Decays {
			fmt.Fprintf(w, "%-8s   -> %s (%.2f)\n", "", strings.Join(d.Daughters, " "), d.Ratio)
		}
	}
	return nil
}

// resolveCatalog loads a catalog the same way a run would: built-in
// when no path is given, a directory of CUE files or a single file
// otherwise.
func resolveCatalog(path string) (*species.Table, string, error) {
	if path == "" {
		tab, err := catalog.Default()
		return tab, "built-in", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, path, err
	}
	if info.IsDir() {
		tab, err := catalog.LoadDir(path)
		return tab, path, err
	}
	tab, err := catalog.Load(path)
	return tab, path, err
}

// describeSpecies flattens a table into listing entries. Table.All is
// already ordered by PDG code, so the listing is stable as is.
func describeSpecies(tab *species.Table) []SpeciesInfo {
	infos := make([]SpeciesInfo, 0, tab.Len())
	for _, t := range tab.All() {
		info := SpeciesInfo{
			Name:   t.Name,
			PDG:    int32(t.PDG),
			Mass:   t.Mass,
			Width:  t.Width,
			Charge: t.Charge,
			Stable: t.Stable(),
		}
		for _, d := range t.Decays {
			names := make([]string, 0, len(d.Daughters))
			for _, code := range d.Daughters {
				if dt, ok := tab.Lookup(code); ok {
					names = append(names, dt.Name)
				} else {
					names = append(names, fmt.Sprintf("%d", code))
				}
			}
			info.Decays = append(info.Decays, DecayInfo{Ratio: d.Ratio, Daughters: names})
		}
		infos = append(infos, info)
	}
	return infos
}
