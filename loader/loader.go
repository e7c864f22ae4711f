// Package loader reads financial models from YAML files. A model file holds
// settings, periods, accounts, supplied values and parameter overrides, and
// may include other model files.
//
// The loader supports two modes of operation:
//   - Simple mode: parses a single file; include paths are reported but not read
//   - Follow mode: recursively loads every included file and merges them
//
// When following includes, relative paths are resolved from the directory
// of the including file and files included more than once are read once.
// Accounts and periods keep file order, main file first. Settings, values
// and parameter overrides of the main file win over those of includes.
//
// Example usage:
//
//	ldr := loader.New(loader.WithFollowIncludes())
//	result, err := ldr.Load(ctx, "model.yaml")
//	out, err := pipeline.New(pipeline.WithSettings(result.Settings)).
//	    Run(ctx, result.Input, pipeline.DefaultOptions())
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/finmodel/finmodel/model"
	"github.com/finmodel/finmodel/pipeline"
)

// StdinFilename is the name used for models read from standard input.
const StdinFilename = "<stdin>"

// Loader handles loading of model files with optional include resolution.
//
// Configure the loader using functional options passed to New:
//
//	loader := New(WithFollowIncludes())
type Loader struct {
	// FollowIncludes determines whether to recursively load included files.
	FollowIncludes bool
}

// Option configures how files are loaded.
type Option func(*Loader)

// WithFollowIncludes configures the loader to recursively load and merge all included files.
func WithFollowIncludes() Option {
	return func(l *Loader) {
		l.FollowIncludes = true
	}
}

// New creates a new Loader with the given options.
func New(opts ...Option) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Result is a loaded model ready to be run.
type Result struct {
	Input    pipeline.Input
	Settings pipeline.Settings

	// Root is the absolute path of the main file, empty for stdin.
	Root string
	// Includes lists the include paths as written when includes are not
	// followed, and the absolute paths of every loaded include otherwise.
	Includes []string
}

// Files returns the root file followed by its includes.
func (r *Result) Files() []string {
	var files []string
	if r.Root != "" {
		files = append(files, r.Root)
	}
	return append(files, r.Includes...)
}

// Load reads a model file, following includes when configured.
func (l *Loader) Load(ctx context.Context, filename string) (*Result, error) {
	absPath, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for %s: %w", filename, err)
	}

	if !l.FollowIncludes {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", filename, err)
		}
		frag, err := parseFragment(filename, data)
		if err != nil {
			return nil, err
		}
		result := assemble(frag)
		result.Root = absPath
		result.Includes = frag.includes
		return result, nil
	}

	state := &loaderState{visited: make(map[string]bool)}
	frags, err := state.loadRecursive(ctx, filename)
	if err != nil {
		return nil, err
	}

	result := assemble(frags...)
	result.Root = absPath
	result.Includes = state.loaded[1:]
	return result, nil
}

// LoadBytes reads a model from memory. Include paths are reported but
// never followed; with FollowIncludes set, a model containing includes is
// rejected.
func (l *Loader) LoadBytes(ctx context.Context, filename string, data []byte) (*Result, error) {
	frag, err := parseFragment(filename, data)
	if err != nil {
		return nil, err
	}
	if l.FollowIncludes && len(frag.includes) > 0 {
		if filename == StdinFilename {
			return nil, errors.New("include directives are not supported when reading from stdin")
		}
		return nil, errors.New("include directives found; use Load() instead of LoadBytes() to resolve includes")
	}

	result := assemble(frag)
	result.Includes = frag.includes
	return result, nil
}

// MustLoad is like Load but panics on error.
func (l *Loader) MustLoad(ctx context.Context, filename string) *Result {
	result, err := l.Load(ctx, filename)
	if err != nil {
		panic(err)
	}
	return result
}

// MustLoadBytes is like LoadBytes but panics on error.
func (l *Loader) MustLoadBytes(ctx context.Context, filename string, data []byte) *Result {
	result, err := l.LoadBytes(ctx, filename, data)
	if err != nil {
		panic(err)
	}
	return result
}

// loaderState tracks state during recursive loading.
type loaderState struct {
	visited map[string]bool // absolute paths of files already loaded
	loaded  []string        // absolute paths in load order
}

// loadRecursive loads a file and then its includes, depth first.
func (l *loaderState) loadRecursive(ctx context.Context, filename string) ([]*fragment, error) {
	absPath, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for %s: %w", filename, err)
	}
	if l.visited[absPath] {
		return nil, nil
	}
	l.visited[absPath] = true
	l.loaded = append(l.loaded, absPath)

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	frag, err := parseFragment(filename, data)
	if err != nil {
		return nil, err
	}

	frags := []*fragment{frag}
	baseDir := filepath.Dir(absPath)
	for _, inc := range frag.includes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		includePath := inc
		if !filepath.IsAbs(includePath) {
			includePath = filepath.Join(baseDir, includePath)
		}
		included, err := l.loadRecursive(ctx, includePath)
		if err != nil {
			return nil, fmt.Errorf("in file %s: %w", filename, err)
		}
		frags = append(frags, included...)
	}
	return frags, nil
}

// fragment is the converted content of one file.
type fragment struct {
	includes   []string
	settings   settingsDoc
	periods    []model.Period
	accounts   []model.Account
	values     []model.FinancialValue
	parameters map[string]model.Parameter
}

func parseFragment(filename string, data []byte) (*fragment, error) {
	var doc document
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, &Error{Filename: filename, Message: err.Error()}
		}
	}

	c := converter{filename: filename}
	frag := &fragment{
		includes:   doc.Include,
		settings:   doc.Settings,
		parameters: make(map[string]model.Parameter, len(doc.Parameters)),
	}

	for _, p := range doc.Periods {
		frag.periods = append(frag.periods, c.period(p))
	}
	for _, a := range doc.Accounts {
		acc, err := c.account(a)
		if err != nil {
			return nil, err
		}
		frag.accounts = append(frag.accounts, acc)
	}

	accountIDs := maps.Keys(doc.Values)
	slices.Sort(accountIDs)
	for _, accountID := range accountIDs {
		periodIDs := maps.Keys(doc.Values[accountID])
		slices.Sort(periodIDs)
		for _, periodID := range periodIDs {
			frag.values = append(frag.values, model.Supplied(accountID, periodID, doc.Values[accountID][periodID].Decimal))
		}
	}

	ids := maps.Keys(doc.Parameters)
	slices.Sort(ids)
	for _, id := range ids {
		p, err := c.parameter(doc.Parameters[id])
		if err != nil {
			return nil, err
		}
		frag.parameters[id] = p
	}
	return frag, nil
}

// assemble merges fragments; the first one is the main file.
func assemble(frags ...*fragment) *Result {
	settings := settingsDoc{}
	var periods []model.Period
	var accounts []model.Account
	params := make(map[string]model.Parameter)

	for _, f := range frags {
		settings = mergeSettings(settings, f.settings)
		periods = append(periods, f.periods...)
		accounts = append(accounts, f.accounts...)
		for id, p := range f.parameters {
			if _, ok := params[id]; !ok {
				params[id] = p
			}
		}
	}

	// Later Set calls win, so store includes before the main file.
	values := model.NewValueStore()
	for i := len(frags) - 1; i >= 0; i-- {
		for _, v := range frags[i].values {
			values.Set(v)
		}
	}

	var overrides map[string]model.Parameter
	if len(params) > 0 {
		overrides = params
	}

	return &Result{
		Input: pipeline.Input{
			Accounts:   accounts,
			Periods:    periods,
			Values:     values,
			Parameters: overrides,
		},
		Settings: resolveSettings(settings),
	}
}

// mergeSettings fills the unset fields of s from other.
func mergeSettings(s, other settingsDoc) settingsDoc {
	if s.RevenueAccountID == "" {
		s.RevenueAccountID = other.RevenueAccountID
	}
	if s.RetainedEarningsAccountID == "" {
		s.RetainedEarningsAccountID = other.RetainedEarningsAccountID
	}
	if s.CashAccountID == "" {
		s.CashAccountID = other.CashAccountID
	}
	if s.PreserveActuals == nil {
		s.PreserveActuals = other.PreserveActuals
	}
	return s
}

func resolveSettings(doc settingsDoc) pipeline.Settings {
	s := pipeline.DefaultSettings()
	if doc.RevenueAccountID != "" {
		s.RevenueAccountID = doc.RevenueAccountID
	}
	if doc.RetainedEarningsAccountID != "" {
		s.RetainedEarningsAccountID = doc.RetainedEarningsAccountID
	}
	if doc.CashAccountID != "" {
		s.CashAccountID = doc.CashAccountID
	}
	if doc.PreserveActuals != nil {
		s.PreserveActuals = *doc.PreserveActuals
	}
	return s
}
