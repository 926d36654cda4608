// Package personalize rewrites the files of a freshly extracted template so
// they carry the new project's name.
package personalize

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"create-uix-app/internal/errs"
	"create-uix-app/internal/logging"
	"create-uix-app/internal/manifest"
	"create-uix-app/internal/variant"
)

// ReadmeMarker starts the README lines that only make sense in the template
// repository itself.
const ReadmeMarker = "Template project"

// Names carries the two spellings of the project name.
type Names struct {
	Project string
	Slug    string
}

// NewNames derives the slug from the literal project name.
func NewNames(project string) Names {
	return Names{Project: project, Slug: variant.Slug(project)}
}

type rewriter func(data []byte, names Names) ([]byte, error)

type rule struct {
	file    string
	rewrite rewriter
}

var rules = map[variant.FileKind]rule{
	variant.Manifest:         {"package.json", rewriteManifest},
	variant.Readme:           {"README.md", rewriteReadme},
	variant.AppDescriptor:    {"app.json", rewriteAppDescriptor},
	variant.DeployDescriptor: {"fly.toml", rewriteDeployDescriptor},
}

// Apply rewrites each file kind inside dir, in order, and stops at the first
// failure.
func Apply(ctx context.Context, fs billy.Filesystem, dir string, kinds []variant.FileKind, names Names) error {
	log := logging.FromContext(ctx)

	for _, kind := range kinds {
		r, ok := rules[kind]
		if !ok {
			return fmt.Errorf("no rewrite rule for file kind %d", kind)
		}
		name := path.Join(dir, r.file)

		data, err := util.ReadFile(fs, name)
		if err != nil {
			return errs.FS("read", name, err)
		}
		out, err := r.rewrite(data, names)
		if err != nil {
			return errs.FS("rewrite", name, err)
		}
		if err := util.WriteFile(fs, name, out, 0644); err != nil {
			return errs.FS("write", name, err)
		}
		log.Debug("File personalized.", "file", name)
	}
	return nil
}

func rewriteManifest(data []byte, names Names) ([]byte, error) {
	obj, err := manifest.Parse(data)
	if err != nil {
		return nil, err
	}
	obj.Set("name", names.Project)
	return manifest.Format(obj)
}

func rewriteReadme(data []byte, names Names) ([]byte, error) {
	text := strings.ReplaceAll(string(data), variant.TemplateName, names.Project)

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if !strings.HasPrefix(l, ReadmeMarker) {
			kept = append(kept, l)
		}
	}
	return []byte(strings.Join(kept, "\n")), nil
}

// rewriteAppDescriptor sets the Expo app name and slug. Descriptors without an
// "expo" section get the fields at the top level.
func rewriteAppDescriptor(data []byte, names Names) ([]byte, error) {
	obj, err := manifest.Parse(data)
	if err != nil {
		return nil, err
	}
	target := obj
	if expo := obj.Object("expo"); expo != nil {
		target = expo
	}
	target.Set("name", names.Project)
	target.Set("slug", names.Slug)
	return manifest.Format(obj)
}

type flyConfig struct {
	App string `toml:"app"`
}

// rewriteDeployDescriptor keeps fly.toml byte for byte except for the template
// name, which becomes the slug since Fly app names are lowercase.
func rewriteDeployDescriptor(data []byte, names Names) ([]byte, error) {
	out := strings.ReplaceAll(string(data), variant.TemplateName, names.Slug)

	var cfg flyConfig
	if _, err := toml.Decode(out, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse fly.toml: %w", err)
	}
	if cfg.App == "" {
		return nil, errors.New("fly.toml has no app name")
	}
	return []byte(out), nil
}
