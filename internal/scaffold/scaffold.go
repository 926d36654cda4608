// Package scaffold drives a scaffolding run from resolved flags to installed
// dependencies.
//
// The run is strictly sequential: Resolving, Fetching, Extracting,
// Personalizing, InstallingDependencies. Any error ends it where it happened;
// there is no retry and nothing is rolled back. A failed dependency install is
// reported but does not fail the run.
package scaffold

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"

	"create-uix-app/internal/console"
	"create-uix-app/internal/errs"
	"create-uix-app/internal/logging"
	"create-uix-app/internal/materialize"
	"create-uix-app/internal/personalize"
	"create-uix-app/internal/variant"
)

type Stage int

const (
	Resolving Stage = iota
	Fetching
	Extracting
	Personalizing
	InstallingDependencies
)

var stageNames = [...]string{"resolving", "fetching", "extracting", "personalizing", "installing-dependencies"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Fetcher opens the template archive as a stream.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Installer installs dependencies in a project directory.
type Installer interface {
	Install(ctx context.Context, dir string) error
}

type Scaffolder struct {
	Resolver  variant.Resolver
	Fetcher   Fetcher
	Installer Installer
	Console   *console.Printer
}

type Request struct {
	ProjectName string
	Flags       variant.Flags
	// WorkDir is where the project is created. Empty means the process's
	// working directory.
	WorkDir string
}

type Result struct {
	variant.Resolution
	// Dir is the absolute path of the project directory.
	Dir string
	// Installed is false when the install command failed.
	Installed bool
}

// Run executes the pipeline. It returns variant.ErrShowHelp when there is
// nothing to scaffold.
func (s *Scaffolder) Run(ctx context.Context, req Request) (*Result, error) {
	log := logging.FromContext(ctx)
	stage := Resolving
	enter := func(st Stage) {
		stage = st
		log.Info("Stage started.", "stage", st.String())
	}
	fail := func(err error) (*Result, error) {
		log.Info("Scaffolding failed.", "stage", stage.String(), "error", err)
		return nil, fmt.Errorf("%s: %w", stage, err)
	}

	enter(Resolving)
	res, err := s.Resolver.Resolve(req.Flags, req.ProjectName)
	if err != nil {
		return nil, err
	}
	log.Info("Template resolved.", "variant", res.Variant.String(), "url", res.URL, "action", res.Action.String())

	workDir, err := workingDirectory(req.WorkDir)
	if err != nil {
		return fail(err)
	}
	fs := osfs.New(workDir)

	switch res.Action {
	case variant.Merge:
		if err := materialize.CheckMergeTarget(fs); err != nil {
			return fail(err)
		}
	default:
		if err := validName(res.ProjectName); err != nil {
			return fail(err)
		}
		if res.ProjectName == res.ExtractedDir {
			return fail(fmt.Errorf("invalid project name %q: it is the template's archive directory", res.ProjectName))
		}
		if err := materialize.EnsureAbsent(fs, res.TargetDir); err != nil {
			return fail(err)
		}
	}
	if err := materialize.EnsureAbsent(fs, res.ExtractedDir); err != nil {
		return fail(err)
	}

	enter(Fetching)
	s.Console.Step("Downloading project template from %s...", res.URL)
	body, err := s.Fetcher.Fetch(ctx, res.URL)
	if err != nil {
		return fail(err)
	}
	defer body.Close()

	enter(Extracting)
	if res.Action == variant.Merge {
		s.Console.Step("Unpacking into %s...", workDir)
	} else {
		s.Console.Step("Unpacking into %s...", res.TargetDir)
	}
	if err := materialize.Extract(ctx, fs, body); err != nil {
		return fail(err)
	}
	body.Close()

	switch res.Action {
	case variant.Merge:
		name, err := materialize.Merge(ctx, fs, res.ExtractedDir, res.ProjectName)
		if err != nil {
			return fail(err)
		}
		res.ProjectName = name
	default:
		if err := materialize.Rename(fs, res.ExtractedDir, res.TargetDir); err != nil {
			return fail(err)
		}
	}

	enter(Personalizing)
	names := personalize.NewNames(res.ProjectName)
	if err := personalize.Apply(ctx, fs, res.TargetDir, res.Files, names); err != nil {
		return fail(err)
	}

	result := &Result{Resolution: res, Dir: filepath.Join(workDir, res.TargetDir)}

	enter(InstallingDependencies)
	s.Console.Step("Installing dependencies...")
	if err := s.Installer.Install(ctx, result.Dir); err != nil {
		var subErr *errs.SubprocessError
		if !errors.As(err, &subErr) {
			return fail(err)
		}
		log.Info("Dependency install failed.", "dir", result.Dir, "exit_code", subErr.ExitCode, "error", err)
		s.Console.Error(err)
		return result, nil
	}

	result.Installed = true
	s.Console.Success("Done.")
	s.Console.NextSteps(res.NextSteps)
	return result, nil
}

func workingDirectory(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", errs.FS("getwd", ".", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errs.FS("abs", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", errs.FS("stat", abs, err)
	}
	if !info.IsDir() {
		return "", errs.FS("stat", abs, errors.New("not a directory"))
	}
	return abs, nil
}

// validName rejects names that would not create a single directory inside
// the working directory.
func validName(name string) error {
	if name == "." || name == ".." || filepath.Base(name) != name || filepath.IsAbs(name) {
		return fmt.Errorf("invalid project name %q", name)
	}
	return nil
}
