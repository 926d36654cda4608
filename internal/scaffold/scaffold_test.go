package scaffold

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"create-uix-app/internal/console"
	"create-uix-app/internal/errs"
	"create-uix-app/internal/fetch"
	"create-uix-app/internal/logging"
	"create-uix-app/internal/manifest"
	"create-uix-app/internal/testutil"
	"create-uix-app/internal/variant"
)

type fakeInstaller struct {
	dir   string
	calls int
	err   error
}

func (f *fakeInstaller) Install(ctx context.Context, dir string) error {
	f.calls++
	f.dir = dir
	return f.err
}

const templateReadme = "# uix-starter\n\nTemplate project for UIx.\nRun `yarn dev` inside uix-starter.\n"

func webArchive(t *testing.T, top string, extra ...testutil.Entry) []byte {
	t.Helper()
	entries := []testutil.Entry{
		{Name: top + "/", Dir: true},
		testutil.File(top+"/package.json", `{"name": "uix-starter", "version": "0.1.0", "scripts": {"dev": "shadow-cljs watch app"}}`),
		testutil.File(top+"/README.md", templateReadme),
		testutil.File(top+"/src/app/core.cljs", "(ns app.core)"),
	}
	for _, e := range extra {
		e.Name = top + "/" + e.Name
		entries = append(entries, e)
	}
	return testutil.Tarball(t, entries...)
}

type harness struct {
	scaffolder *Scaffolder
	installer  *fakeInstaller
	out        *bytes.Buffer
	workDir    string
	hits       *atomic.Int32
}

// newHarness serves archives by variant from a local server.
func newHarness(t *testing.T, archives map[variant.Variant][]byte) *harness {
	t.Helper()

	hits := &atomic.Int32{}
	mux := http.NewServeMux()
	urls := map[variant.Variant]string{}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	for _, v := range append([]variant.Variant{variant.Default}, variant.Precedence...) {
		p := "/" + v.String() + ".tar.gz"
		urls[v] = srv.URL + p
		data, ok := archives[v]
		mux.HandleFunc(p, func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Write(data)
		})
	}

	out := &bytes.Buffer{}
	installer := &fakeInstaller{}
	return &harness{
		scaffolder: &Scaffolder{
			Resolver:  variant.Resolver{Capabilities: variant.All(), URLs: urls},
			Fetcher:   fetch.New(),
			Installer: installer,
			Console:   console.New(out),
		},
		installer: installer,
		out:       out,
		workDir:   t.TempDir(),
		hits:      hits,
	}
}

func (h *harness) run(name string, flags variant.Flags) (*Result, error) {
	ctx := logging.WithLogger(context.Background(), logging.Discard())
	return h.scaffolder.Run(ctx, Request{ProjectName: name, Flags: flags, WorkDir: h.workDir})
}

func (h *harness) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.workDir, rel))
	require.NoError(t, err)
	return string(data)
}

func TestRun_Default(t *testing.T) {
	h := newHarness(t, map[variant.Variant][]byte{variant.Default: webArchive(t, "uix-starter-master")})

	res, err := h.run("MyApp", variant.Flags{})
	require.NoError(t, err)

	assert.Equal(t, variant.Default, res.Variant)
	assert.True(t, res.Installed)
	assert.Equal(t, filepath.Join(h.workDir, "MyApp"), res.Dir)
	assert.Equal(t, 1, h.installer.calls)
	assert.Equal(t, filepath.Join(h.workDir, "MyApp"), h.installer.dir)

	_, err = os.Stat(filepath.Join(h.workDir, "uix-starter-master"))
	assert.True(t, os.IsNotExist(err))

	pkg, err := manifest.Parse([]byte(h.read(t, "MyApp/package.json")))
	require.NoError(t, err)
	assert.Equal(t, "MyApp", pkg.String("name"))
	assert.Equal(t, []string{"name", "version", "scripts"}, pkg.Keys())

	readme := h.read(t, "MyApp/README.md")
	assert.Equal(t, "# MyApp\n\nRun `yarn dev` inside MyApp.\n", readme)

	output := h.out.String()
	assert.Contains(t, output, "Downloading project template from ")
	assert.Contains(t, output, "Unpacking into MyApp...")
	assert.Contains(t, output, "Installing dependencies...")
	assert.Contains(t, output, "Done.")
	assert.Contains(t, output, "yarn release # build production bundle")
}

func TestRun_Expo(t *testing.T) {
	h := newHarness(t, map[variant.Variant][]byte{
		variant.Expo: webArchive(t, "uix-starter-expo",
			testutil.File("app.json", `{"expo": {"name": "uix-starter", "slug": "uix-starter", "platforms": ["ios", "android"]}}`)),
	})

	// Expo outranks re-frame when both are given.
	res, err := h.run("MyApp", variant.Flags{variant.Expo: true, variant.ReFrame: true})
	require.NoError(t, err)
	assert.Equal(t, variant.Expo, res.Variant)

	app, err := manifest.Parse([]byte(h.read(t, "MyApp/app.json")))
	require.NoError(t, err)
	assert.Equal(t, "MyApp", app.Object("expo").String("name"))
	assert.Equal(t, "my-app", app.Object("expo").String("slug"))
	assert.Contains(t, h.out.String(), "yarn start # start Expo dev server")
}

func TestRun_FlyIO(t *testing.T) {
	h := newHarness(t, map[variant.Variant][]byte{
		variant.FlyIO: webArchive(t, "uix-starter-fly-io",
			testutil.File("fly.toml", "app = \"uix-starter\"\n\n[http_service]\n  internal_port = 8080\n")),
	})

	_, err := h.run("MyApp", variant.Flags{variant.FlyIO: true})
	require.NoError(t, err)

	assert.Equal(t, "app = \"my-app\"\n\n[http_service]\n  internal_port = 8080\n", h.read(t, "MyApp/fly.toml"))
	assert.Contains(t, h.out.String(), "fly deploy")
}

func TestRun_ReactNativeMerge(t *testing.T) {
	archive := testutil.Tarball(t,
		testutil.Entry{Name: "uix-starter-react-native/", Dir: true},
		testutil.File("uix-starter-react-native/package.json", `{"name": "uix-starter", "devDependencies": {"shadow-cljs": "2.26.2"}}`),
		testutil.File("uix-starter-react-native/src/app/core.cljs", `(.registerComponent AppRegistry "HelloWorld" root)`),
		testutil.File("uix-starter-react-native/dev/user.cljs", "(ns user)"),
		testutil.File("uix-starter-react-native/shadow-cljs.edn", "{}"),
		testutil.File("uix-starter-react-native/deps.edn", "{}"),
	)
	h := newHarness(t, map[variant.Variant][]byte{variant.ReactNative: archive})
	require.NoError(t, os.WriteFile(filepath.Join(h.workDir, "package.json"), []byte(`{"name": "Mobile", "dependencies": {"react-native": "0.72.0"}}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(h.workDir, "app.json"), []byte(`{"name": "Mobile"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(h.workDir, ".gitignore"), []byte("node_modules/\n"), 0644))

	res, err := h.run("", variant.Flags{variant.ReactNative: true, variant.FlyIO: true})
	require.NoError(t, err)

	assert.Equal(t, variant.ReactNative, res.Variant)
	assert.Equal(t, "Mobile", res.ProjectName)
	assert.Equal(t, h.workDir, h.installer.dir)

	_, err = os.Stat(filepath.Join(h.workDir, "uix-starter-react-native"))
	assert.True(t, os.IsNotExist(err))

	pkg, err := manifest.Parse([]byte(h.read(t, "package.json")))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "dependencies", "devDependencies"}, pkg.Keys())
	assert.Equal(t, "Mobile", pkg.String("name"))

	assert.Equal(t, `(.registerComponent AppRegistry "Mobile" root)`, h.read(t, "src/app/core.cljs"))
	assert.Equal(t, "node_modules/\n.cpcache/\n.shadow-cljs/\napp/\n", h.read(t, ".gitignore"))
}

func TestRun_ShowHelp(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.run("", variant.Flags{variant.ReFrame: true})
	assert.ErrorIs(t, err, variant.ErrShowHelp)
	assert.Zero(t, h.hits.Load())
	assert.Empty(t, h.out.String())
}

func TestRun_NetworkErrorLeavesNoDirectory(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.run("MyApp", variant.Flags{})
	require.Error(t, err)

	var netErr *errs.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, "404 Not Found", netErr.Status)
	assert.True(t, strings.HasPrefix(err.Error(), "fetching: "))

	entries, err := os.ReadDir(h.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, h.installer.calls)
}

func TestRun_TargetExists(t *testing.T) {
	h := newHarness(t, map[variant.Variant][]byte{variant.Default: webArchive(t, "uix-starter-master")})
	require.NoError(t, os.Mkdir(filepath.Join(h.workDir, "MyApp"), 0755))

	_, err := h.run("MyApp", variant.Flags{})

	var fsErr *errs.FilesystemError
	require.True(t, errors.As(err, &fsErr))
	assert.ErrorIs(t, err, os.ErrExist)
	assert.Zero(t, h.hits.Load(), "nothing is downloaded when the target exists")
}

func TestRun_UnexpectedArchiveLayout(t *testing.T) {
	h := newHarness(t, map[variant.Variant][]byte{variant.Default: webArchive(t, "some-other-dir")})

	_, err := h.run("MyApp", variant.Flags{})

	var fsErr *errs.FilesystemError
	require.True(t, errors.As(err, &fsErr))
	assert.Equal(t, "uix-starter-master", fsErr.Path)
	assert.Zero(t, h.installer.calls)
}

func TestRun_MissingPersonalizedFile(t *testing.T) {
	h := newHarness(t, map[variant.Variant][]byte{variant.Expo: webArchive(t, "uix-starter-expo")})

	_, err := h.run("MyApp", variant.Flags{variant.Expo: true})

	var fsErr *errs.FilesystemError
	require.True(t, errors.As(err, &fsErr))
	assert.Equal(t, "MyApp/app.json", filepath.ToSlash(fsErr.Path))
	assert.Zero(t, h.installer.calls)
}

func TestRun_InstallFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, map[variant.Variant][]byte{variant.Default: webArchive(t, "uix-starter-master")})
	h.installer.err = &errs.SubprocessError{Command: "yarn install", Dir: "MyApp", ExitCode: 1, Err: errors.New("exit status 1")}

	res, err := h.run("MyApp", variant.Flags{})
	require.NoError(t, err)
	assert.False(t, res.Installed)

	pkg, err := manifest.Parse([]byte(h.read(t, "MyApp/package.json")))
	require.NoError(t, err)
	assert.Equal(t, "MyApp", pkg.String("name"))

	output := h.out.String()
	assert.Contains(t, output, "Error: ")
	assert.NotContains(t, output, "Done.")
	assert.NotContains(t, output, "yarn release")
}

func TestRun_InvalidProjectName(t *testing.T) {
	h := newHarness(t, nil)

	for _, name := range []string{"../escape", "a/b", ".."} {
		_, err := h.run(name, variant.Flags{})
		require.Error(t, err, name)
		assert.Contains(t, err.Error(), "invalid project name")
	}
	assert.Zero(t, h.hits.Load())
}

func TestRun_NameMatchesArchiveDirectory(t *testing.T) {
	h := newHarness(t, map[variant.Variant][]byte{variant.Default: webArchive(t, "uix-starter-master")})

	_, err := h.run("uix-starter-master", variant.Flags{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid project name")

	assert.Zero(t, h.hits.Load())
	entries, err := os.ReadDir(h.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_LeftoverArchiveDirectory(t *testing.T) {
	h := newHarness(t, map[variant.Variant][]byte{variant.Default: webArchive(t, "uix-starter-master")})
	require.NoError(t, os.Mkdir(filepath.Join(h.workDir, "uix-starter-master"), 0755))

	_, err := h.run("MyApp", variant.Flags{})

	var fsErr *errs.FilesystemError
	require.True(t, errors.As(err, &fsErr))
	assert.Equal(t, "uix-starter-master", fsErr.Path)
	assert.Zero(t, h.hits.Load())
}

func TestRun_ReactNativeExistingSourceIsKept(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(h.workDir, "package.json"), []byte(`{"name": "Mobile"}`), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(h.workDir, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(h.workDir, "src", "UserCode.tsx"), []byte("export {}"), 0644))

	_, err := h.run("", variant.Flags{variant.ReactNative: true})
	assert.ErrorIs(t, err, os.ErrExist)
	assert.True(t, strings.HasPrefix(err.Error(), "resolving: "))

	assert.Zero(t, h.hits.Load(), "nothing is downloaded when the merge would overwrite user files")
	assert.Equal(t, "export {}", h.read(t, "src/UserCode.tsx"))
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "resolving", Resolving.String())
	assert.Equal(t, "installing-dependencies", InstallingDependencies.String())
	assert.Equal(t, "stage(9)", Stage(9).String())
}
