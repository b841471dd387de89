package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/lambdajobs/errors"
	"github.com/wippyai/lambdajobs/framework"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/fixture"
)

// moduleExt names encoded modules written by the framework command.
const moduleExt = ".ilm"

func (a *app) processCmd() *cobra.Command {
	var (
		refs        []string
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "process module...",
		Short: "Rewrite the lambda jobs of modules",
		Long: "Rewrite the lambda jobs of each module. Modules are processed concurrently\n" +
			"and must not reference one another; shared dependencies go in --ref.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refMods, err := readModules(refs)
			if err != nil {
				return err
			}
			reports, mods, err := a.process(args, refMods)
			if err != nil {
				return err
			}
			return a.finish(reports, mods, interactive, "lambdajobs")
		},
	}
	cmd.Flags().StringVarP(&a.out, "out", "o", "", "directory for processed modules (default rewrites in place)")
	cmd.Flags().StringSliceVarP(&refs, "ref", "r", nil, "referenced module, read only")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse the results")
	return cmd
}

// process runs the pass over files, one goroutine per module. Failures
// of a single file land in its report; only output errors abort.
func (a *app) process(files []string, refs []*il.Module) ([]*fileReport, map[string]*il.Module, error) {
	p := a.cfg.processor(a.log)
	reports := make([]*fileReport, len(files))
	mods := make(map[string]*il.Module, len(files))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, file := range files {
		g.Go(func() error {
			r := &fileReport{File: file}
			reports[i] = r
			mod, err := readModule(file)
			if err != nil {
				r.Error = err.Error()
				return nil
			}
			res, err := p.Process(mod, refs...)
			r.Result = res
			if err != nil {
				r.Error = err.Error()
				return nil
			}
			mu.Lock()
			mods[file] = mod
			mu.Unlock()
			if res.HasErrors() {
				a.log.Warn("module has errors, not written",
					zap.String("file", file),
					zap.Int("errors", len(res.Errors())))
				return nil
			}
			out := a.outputPath(file)
			if err := writeModule(out, mod); err != nil {
				return err
			}
			r.Output = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return reports, mods, nil
}

func (a *app) outputPath(file string) string {
	if a.cfg.Output.Dir == "" {
		return file
	}
	return filepath.Join(a.cfg.Output.Dir, filepath.Base(file))
}

// finish prints the reports or opens the browser, and turns failures
// into errFailed.
func (a *app) finish(reports []*fileReport, mods map[string]*il.Module, interactive bool, title string) error {
	if interactive {
		if err := runInteractive(title, entries(reports, mods)); err != nil {
			return err
		}
	} else if err := writeReports(os.Stdout, a.cfg.Output.Format, reports); err != nil {
		return err
	}
	for _, r := range reports {
		if r.failed() {
			return errFailed
		}
	}
	return nil
}

func (a *app) dumpCmd() *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "dump module",
		Short: "Print the IL of a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := readModule(args[0])
			if err != nil {
				return err
			}
			fmt.Println(titleStyle.Render(mod.Name))
			if method != "" {
				return dumpMethods(mod, method)
			}
			for _, t := range mod.Types {
				if err := il.DumpType(os.Stdout, t); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&method, "method", "m", "", "dump only methods whose full name contains this")
	return cmd
}

func dumpMethods(mod *il.Module, filter string) error {
	found := false
	for _, t := range mod.AllTypes() {
		for _, m := range t.Methods {
			if !strings.Contains(m.FullName(), filter) {
				continue
			}
			found = true
			if err := il.Dump(os.Stdout, m); err != nil {
				return err
			}
		}
	}
	if !found {
		return errors.NotFound(errors.PhaseLoad, filter)
	}
	return nil
}

func (a *app) frameworkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "framework",
		Short: "List or write the built-in framework modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, mod := range framework.Modules() {
				if a.cfg.Output.Dir == "" {
					fmt.Println(titleStyle.Render(mod.Name))
					for _, t := range mod.AllTypes() {
						fmt.Println("  " + t.FullName())
					}
					continue
				}
				out := filepath.Join(a.cfg.Output.Dir, mod.Name+moduleExt)
				if err := writeModule(out, mod); err != nil {
					return err
				}
				a.log.Info("wrote framework module", zap.String("file", out))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&a.out, "out", "o", "", "write encoded modules to this directory")
	return cmd
}

func (a *app) demoCmd() *cobra.Command {
	var (
		interactive bool
		dump        bool
	)
	cmd := &cobra.Command{
		Use:   "demo [scenario]...",
		Short: "Process the built-in sample systems",
		Long:  "Process the built-in sample systems: " + strings.Join(scenarioNames(), ", ") + ".",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = scenarioNames()
			}
			p := a.cfg.processor(a.log)
			var reports []*fileReport
			mods := make(map[string]*il.Module)
			for _, name := range args {
				build, ok := fixture.Scenarios[name]
				if !ok {
					return errors.NotFound(errors.PhaseLoad, "scenario "+name)
				}
				mod := build().Finish()
				res, err := p.Process(mod)
				if err != nil {
					return err
				}
				reports = append(reports, &fileReport{File: name, Result: res})
				mods[name] = mod
				if dump && !interactive {
					for _, t := range mod.Types {
						if err := il.DumpType(os.Stdout, t); err != nil {
							return err
						}
					}
				}
			}
			return a.finish(reports, mods, interactive, "lambdajobs demo")
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse the results")
	cmd.Flags().BoolVarP(&dump, "dump", "d", false, "print the rewritten IL")
	return cmd
}

func scenarioNames() []string {
	names := make([]string, 0, len(fixture.Scenarios))
	for name := range fixture.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func readModule(file string) (*il.Module, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindNotFound, err, "read "+file)
	}
	mod, err := il.DecodeValidate(data)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, file)
	}
	return mod, nil
}

func readModules(files []string) ([]*il.Module, error) {
	mods := make([]*il.Module, 0, len(files))
	for _, f := range files {
		mod, err := readModule(f)
		if err != nil {
			return nil, err
		}
		mods = append(mods, mod)
	}
	return mods, nil
}

func writeModule(file string, mod *il.Module) error {
	data, err := il.Encode(mod)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(errors.PhaseEncode, errors.KindInternal, err, "create "+dir)
		}
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return errors.Wrap(errors.PhaseEncode, errors.KindInternal, err, "write "+file)
	}
	return nil
}
