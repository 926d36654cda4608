package materialize

import (
	"context"
	"errors"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"create-uix-app/internal/errs"
	"create-uix-app/internal/logging"
	"create-uix-app/internal/manifest"
)

const (
	// Placeholder is the app name the react-native template registers its
	// root component under.
	Placeholder = "HelloWorld"
	// PlaceholderFile is where Placeholder appears.
	PlaceholderFile = "src/app/core.cljs"

	manifestFile  = "package.json"
	appDescriptor = "app.json"
	ignoreFile    = ".gitignore"
)

// MergePaths are moved from the staging directory into the project root.
var MergePaths = []string{"src", "dev", "shadow-cljs.edn", "deps.edn"}

// IgnorePatterns are appended to an existing .gitignore by Merge.
var IgnorePatterns = []string{".cpcache/", ".shadow-cljs/", "app/"}

// EnsureAbsent fails when name already exists in fs.
func EnsureAbsent(fs billy.Filesystem, name string) error {
	_, err := fs.Stat(name)
	if err == nil {
		return errs.FS("create", name, os.ErrExist)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return errs.FS("stat", name, err)
	}
	return nil
}

// CheckMergeTarget fails when one of MergePaths already exists in the
// project at the root of fs. Merge never overwrites the user's files.
func CheckMergeTarget(fs billy.Filesystem) error {
	for _, p := range MergePaths {
		if err := EnsureAbsent(fs, p); err != nil {
			return err
		}
	}
	return nil
}

// Rename moves the extracted directory from to the project directory to.
func Rename(fs billy.Filesystem, from, to string) error {
	if _, err := fs.Stat(from); err != nil {
		return errs.FS("rename", from, err)
	}
	if err := EnsureAbsent(fs, to); err != nil {
		return err
	}
	if err := fs.Rename(from, to); err != nil {
		return errs.FS("rename", from, err)
	}
	return nil
}

// Merge folds the staging directory into the project at the root of fs and
// removes it. None of MergePaths may exist in the project yet. When
// projectName is empty it is taken from the project itself. The project name
// actually used is returned.
func Merge(ctx context.Context, fs billy.Filesystem, staging, projectName string) (string, error) {
	log := logging.FromContext(ctx)

	required := append(append([]string{}, MergePaths...), manifestFile, PlaceholderFile)
	for _, p := range required {
		if _, err := fs.Stat(path.Join(staging, p)); err != nil {
			return "", errs.FS("merge", path.Join(staging, p), err)
		}
	}

	if err := CheckMergeTarget(fs); err != nil {
		return "", err
	}

	existing, err := readManifest(fs, manifestFile)
	if err != nil {
		return "", err
	}
	template, err := readManifest(fs, path.Join(staging, manifestFile))
	if err != nil {
		return "", err
	}

	if projectName == "" {
		projectName, err = ProjectName(fs)
		if err != nil {
			return "", err
		}
	}
	log.Debug("Merging template into project.", "project", projectName, "staging", staging)

	for _, p := range MergePaths {
		if err := fs.Rename(path.Join(staging, p), p); err != nil {
			return "", errs.FS("move", path.Join(staging, p), err)
		}
	}

	if err := writeManifest(fs, manifestFile, manifest.Merge(existing, template)); err != nil {
		return "", err
	}

	src, err := util.ReadFile(fs, PlaceholderFile)
	if err != nil {
		return "", errs.FS("read", PlaceholderFile, err)
	}
	src = []byte(strings.ReplaceAll(string(src), Placeholder, projectName))
	if err := util.WriteFile(fs, PlaceholderFile, src, 0644); err != nil {
		return "", errs.FS("write", PlaceholderFile, err)
	}

	if err := appendIgnores(fs); err != nil {
		return "", err
	}

	if err := util.RemoveAll(fs, staging); err != nil {
		return "", errs.FS("remove", staging, err)
	}
	return projectName, nil
}

// ProjectName reads the name of the project at the root of fs from app.json,
// falling back to package.json.
func ProjectName(fs billy.Filesystem) (string, error) {
	for _, name := range []string{appDescriptor, manifestFile} {
		obj, err := readManifest(fs, name)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if n := obj.String("name"); n != "" {
			return n, nil
		}
	}
	return "", errs.FS("read", manifestFile, errors.New("project has no name"))
}

func appendIgnores(fs billy.Filesystem) error {
	data, err := util.ReadFile(fs, ignoreFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errs.FS("read", ignoreFile, err)
	}

	present := map[string]bool{}
	for _, line := range strings.Split(string(data), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var b strings.Builder
	b.Write(data)
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		b.WriteByte('\n')
	}
	for _, p := range IgnorePatterns {
		if !present[p] {
			b.WriteString(p + "\n")
		}
	}

	if err := util.WriteFile(fs, ignoreFile, []byte(b.String()), 0644); err != nil {
		return errs.FS("write", ignoreFile, err)
	}
	return nil
}

func readManifest(fs billy.Filesystem, name string) (*manifest.Object, error) {
	data, err := util.ReadFile(fs, name)
	if err != nil {
		return nil, errs.FS("read", name, err)
	}
	obj, err := manifest.Parse(data)
	if err != nil {
		return nil, errs.FS("parse", name, err)
	}
	return obj, nil
}

func writeManifest(fs billy.Filesystem, name string, obj *manifest.Object) error {
	data, err := manifest.Format(obj)
	if err != nil {
		return errs.FS("format", name, err)
	}
	if err := util.WriteFile(fs, name, data, 0644); err != nil {
		return errs.FS("write", name, err)
	}
	return nil
}
