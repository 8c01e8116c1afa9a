// Package catalog loads species tables from CUE catalog files. Entries
// are validated against the embedded schema (mass, branching-ratio and
// daughter-count constraints) with positioned errors, then cross-checked
// by species.NewTable for unknown daughters and ratio sums.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/cascade/internal/phys"
	"github.com/roach88/cascade/internal/species"
)

//go:embed schema.cue
var schemaSrc string

//go:embed catalog.cue
var defaultSrc string

// Default returns the built-in species table shipped with the binary.
func Default() (*species.Table, error) {
	return LoadString(defaultSrc, "catalog.cue")
}

// LoadString compiles a catalog from CUE source. The filename is used
// for error positions only.
func LoadString(src, filename string) (*species.Table, error) {
	ctx := cuecontext.New()
	schema, err := schemaValue(ctx)
	if err != nil {
		return nil, err
	}

	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	return Compile(schema.Unify(v))
}

// Load reads a single catalog file.
func Load(path string) (*species.Table, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return LoadString(string(src), path)
}

// LoadDir loads every CUE file under dir as one catalog instance, so a
// catalog may be split across files that each declare some species.
func LoadDir(dir string) (*species.Table, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reading catalog dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog path %s: not a directory", dir)
	}

	files, err := findCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning catalog dir: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	// Explicit file arguments so catalog files need no package clause.
	instances := load.Instances(files, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	ctx := cuecontext.New()
	schema, err := schemaValue(ctx)
	if err != nil {
		return nil, err
	}

	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	return Compile(schema.Unify(v))
}

// Compile decodes a built catalog value into a validated species table.
func Compile(v cue.Value) (*species.Table, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	sv := v.LookupPath(cue.ParsePath("species"))
	if !sv.Exists() {
		return nil, &CompileError{
			Field:   "species",
			Message: "catalog declares no species",
			Pos:     v.Pos(),
		}
	}

	// Hidden fields carry the branching-ratio sum constraint.
	if err := sv.Validate(cue.Concrete(true), cue.Hidden(true)); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := sv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var types []species.Type
	for iter.Next() {
		t, err := CompileSpecies(iter.Value())
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}

	tab, err := species.NewTable(types)
	if err != nil {
		return nil, &CompileError{
			Field:   "species",
			Message: err.Error(),
			Pos:     sv.Pos(),
		}
	}
	return tab, nil
}

// CompileSpecies parses a single species entry from a CUE value.
func CompileSpecies(v cue.Value) (species.Type, error) {
	var t species.Type
	if err := v.Err(); err != nil {
		return t, formatCUEError(err)
	}

	name, err := requiredString(v, "name")
	if err != nil {
		return t, err
	}
	t.Name = name

	pdg, err := requiredInt(v, "pdg")
	if err != nil {
		return t, err
	}
	t.PDG = phys.PDG(pdg)

	mass, err := requiredFloat(v, "mass")
	if err != nil {
		return t, err
	}
	t.Mass = mass

	if t.Width, err = optionalFloat(v, "width"); err != nil {
		return t, err
	}

	charge, err := optionalInt(v, "charge")
	if err != nil {
		return t, err
	}
	t.Charge = int(charge)

	baryon, err := optionalInt(v, "baryon")
	if err != nil {
		return t, err
	}
	t.Baryon = int(baryon)

	strangeness, err := optionalInt(v, "strangeness")
	if err != nil {
		return t, err
	}
	t.Strangeness = int(strangeness)

	dv := v.LookupPath(cue.ParsePath("decays"))
	if dv.Exists() {
		iter, err := dv.List()
		if err != nil {
			return t, formatCUEError(err)
		}
		for iter.Next() {
			ch, err := compileDecay(iter.Value())
			if err != nil {
				return t, err
			}
			t.Decays = append(t.Decays, ch)
		}
	}

	return t, nil
}

// compileDecay parses one decay mode. Modes are strictly two-body.
func compileDecay(v cue.Value) (species.DecayChannel, error) {
	var ch species.DecayChannel

	ratio, err := requiredFloat(v, "ratio")
	if err != nil {
		return ch, err
	}
	ch.Ratio = ratio

	dv := v.LookupPath(cue.ParsePath("daughters"))
	if !dv.Exists() {
		return ch, &CompileError{
			Field:   "daughters",
			Message: "daughters are required",
			Pos:     v.Pos(),
		}
	}

	iter, err := dv.List()
	if err != nil {
		return ch, formatCUEError(err)
	}
	n := 0
	for iter.Next() {
		code, err := iter.Value().Int64()
		if err != nil {
			return ch, formatCUEError(err)
		}
		if n >= len(ch.Daughters) {
			return ch, &CompileError{
				Field:   "daughters",
				Message: "decay modes are two-body",
				Pos:     dv.Pos(),
			}
		}
		ch.Daughters[n] = phys.PDG(code)
		n++
	}
	if n != len(ch.Daughters) {
		return ch, &CompileError{
			Field:   "daughters",
			Message: fmt.Sprintf("want 2 daughters, got %d", n),
			Pos:     dv.Pos(),
		}
	}

	return ch, nil
}

func schemaValue(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func requiredInt(v cue.Value, field string) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

func requiredFloat(v cue.Value, field string) (float64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	f, err := fv.Float64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return f, nil
}

func optionalFloat(v cue.Value, field string) (float64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	f, err := fv.Float64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return f, nil
}

func optionalInt(v cue.Value, field string) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

// findCUEFiles walks the directory and returns all .cue file paths.
func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
