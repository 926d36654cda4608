// Package variant maps command-line flags to the template flavor that gets
// scaffolded.
//
// Every flavor lives on its own branch of the uix-starter repository and is
// described by a Descriptor in a single lookup table. When several flags are
// set, the first variant in Precedence wins; conflicting flags are never an
// error.
package variant

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// TemplateName is the name the starter repository uses for itself inside the
// files it ships.
const TemplateName = "uix-starter"

const archiveBase = "https://github.com/pitch-io/uix-starter/archive/"

// Variant is one of the mutually exclusive template flavors.
type Variant int

const (
	Default Variant = iota
	ReFrame
	ReactNative
	Expo
	FlyIO
)

var variantNames = map[Variant]string{
	Default:     "default",
	ReFrame:     "re-frame",
	ReactNative: "react-native",
	Expo:        "expo",
	FlyIO:       "fly-io",
}

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// ParseVariant accepts the names used by the command-line flags.
func ParseVariant(s string) (Variant, error) {
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "--")))
	for v, name := range variantNames {
		if name == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown template variant %q", s)
}

// Precedence lists the flag-selected variants from strongest to weakest.
// Default is what remains when none of them is set.
var Precedence = []Variant{ReactNative, Expo, ReFrame, FlyIO}

// Action is what happens to the extracted archive directory.
type Action int

const (
	// Rename moves the extracted directory to the project name.
	Rename Action = iota
	// Merge folds the extracted directory into the project in the working
	// directory and removes it afterwards.
	Merge
)

func (a Action) String() string {
	if a == Merge {
		return "merge"
	}
	return "rename"
}

// FileKind names a file the personalizer rewrites.
type FileKind int

const (
	Manifest FileKind = iota
	Readme
	AppDescriptor
	DeployDescriptor
)

// Descriptor is the immutable description of one variant.
type Descriptor struct {
	Variant Variant
	// Usage is the help text of the variant's flag.
	Usage string
	URL   string
	// ExtractedDir is the top-level directory of the archive. For Merge it is
	// the staging directory that gets removed.
	ExtractedDir string
	Action       Action
	Files        []FileKind
	NextSteps    []string
}

// SelfSufficient reports whether the variant can run without a project name.
func (d Descriptor) SelfSufficient() bool {
	return d.Action == Merge
}

var webSteps = []string{
	"yarn dev # run dev build in watch mode with CLJS REPL",
	"yarn release # build production bundle",
}

var table = map[Variant]Descriptor{
	Default: {
		Variant:      Default,
		URL:          archiveBase + "master.tar.gz",
		ExtractedDir: TemplateName + "-master",
		Action:       Rename,
		Files:        []FileKind{Manifest, Readme},
		NextSteps:    webSteps,
	},
	ReFrame: {
		Variant:      ReFrame,
		Usage:        "add re-frame setup",
		URL:          archiveBase + "re-frame.tar.gz",
		ExtractedDir: TemplateName + "-re-frame",
		Action:       Rename,
		Files:        []FileKind{Manifest, Readme},
		NextSteps:    webSteps,
	},
	ReactNative: {
		Variant:      ReactNative,
		Usage:        "add UIx to an existing React Native project in the current directory",
		URL:          archiveBase + "react-native.tar.gz",
		ExtractedDir: TemplateName + "-react-native",
		Action:       Merge,
		NextSteps: []string{
			"yarn cljs:dev # run CLJS build in watch mode",
			"yarn start # start Metro bundler",
		},
	},
	Expo: {
		Variant:      Expo,
		Usage:        "create a new React Native project with Expo",
		URL:          archiveBase + "expo.tar.gz",
		ExtractedDir: TemplateName + "-expo",
		Action:       Rename,
		Files:        []FileKind{Manifest, Readme, AppDescriptor},
		NextSteps: []string{
			"yarn cljs:dev # run CLJS build in watch mode",
			"yarn start # start Expo dev server",
		},
	},
	FlyIO: {
		Variant:      FlyIO,
		Usage:        "add full-stack setup with deployment to Fly.io",
		URL:          archiveBase + "fly-io.tar.gz",
		ExtractedDir: TemplateName + "-fly-io",
		Action:       Rename,
		Files:        []FileKind{Manifest, Readme, DeployDescriptor},
		NextSteps: append(append([]string{}, webSteps...),
			"fly launch # create the app on Fly.io",
			"fly deploy # deploy the release build",
		),
	},
}

// Lookup returns the built-in descriptor of v.
func Lookup(v Variant) Descriptor {
	return table[v]
}

// Capabilities is the set of variants a build of the tool offers. Default is
// always available.
type Capabilities map[Variant]bool

// All enables every variant.
func All() Capabilities {
	caps := Capabilities{}
	for v := range variantNames {
		caps[v] = true
	}
	return caps
}

// NewCapabilities enables the given variants.
func NewCapabilities(vs ...Variant) Capabilities {
	caps := Capabilities{Default: true}
	for _, v := range vs {
		caps[v] = true
	}
	return caps
}

func (c Capabilities) Enabled(v Variant) bool {
	return v == Default || c[v]
}

// Flags returns the enabled flag-selected variants in precedence order.
func (c Capabilities) Flags() []Variant {
	var out []Variant
	for _, v := range Precedence {
		if c.Enabled(v) {
			out = append(out, v)
		}
	}
	return out
}

// Names returns the enabled variant names sorted alphabetically.
func (c Capabilities) Names() []string {
	var out []string
	for v := range variantNames {
		if c.Enabled(v) {
			out = append(out, v.String())
		}
	}
	sort.Strings(out)
	return out
}

// Flags records which variant flags were set on the command line.
type Flags map[Variant]bool

// ErrShowHelp is returned when there is nothing to scaffold and usage should be
// printed instead.
var ErrShowHelp = errors.New("no project name given")

// Resolution is the outcome of resolving flags and the project name.
type Resolution struct {
	Descriptor
	// ProjectName is the literal name from the command line. It may be empty
	// for self-sufficient variants.
	ProjectName string
	// TargetDir is the project directory relative to the working directory.
	TargetDir string
}

// Resolver turns flags into a Resolution.
type Resolver struct {
	Capabilities Capabilities
	// URLs overrides the archive location of individual variants.
	URLs map[Variant]string
}

// Select picks the winning variant. Flags of disabled variants are ignored.
func (r Resolver) Select(flags Flags) Variant {
	for _, v := range Precedence {
		if flags[v] && r.Capabilities.Enabled(v) {
			return v
		}
	}
	return Default
}

// Resolve is a pure function of its inputs.
func (r Resolver) Resolve(flags Flags, projectName string) (Resolution, error) {
	d := Lookup(r.Select(flags))
	if url, ok := r.URLs[d.Variant]; ok && url != "" {
		d.URL = url
	}

	if projectName == "" && !d.SelfSufficient() {
		return Resolution{}, ErrShowHelp
	}

	res := Resolution{Descriptor: d, ProjectName: projectName, TargetDir: projectName}
	if d.Action == Merge {
		res.TargetDir = "."
	}
	return res, nil
}
