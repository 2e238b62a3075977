package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/odvcencio/sver/internal/gittest"
)

const simpleVersion = "d601cac0967b58cd86a3a0384709f81ada1db3a42060e4458b843a7c7613b6ea"

func runSver(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(logEnv, "")
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func simpleRepo(t *testing.T) *gittest.Repo {
	t.Helper()
	g := gittest.New(t)
	g.AddBlob("hello.txt", []byte("hello world!"))
	g.AddBlob("service1/world.txt", []byte("good morning!"))
	return g
}

func TestCalcCurrentDirectory(t *testing.T) {
	g := simpleRepo(t)
	chdir(t, g.Root)

	out, err := runSver(t, "calc")
	if err != nil {
		t.Fatalf("calc: %v", err)
	}
	if want := simpleVersion[:12] + "\n"; out != want {
		t.Fatalf("calc output = %q, want %q", out, want)
	}
}

func TestCalcKeepsArgumentOrder(t *testing.T) {
	g := simpleRepo(t)

	single, err := runSver(t, "calc", "--length", "long", g.Path("service1"))
	if err != nil {
		t.Fatalf("calc service1: %v", err)
	}
	out, err := runSver(t, "calc", "-l", "long", g.Root, g.Path("service1"), g.Root)
	if err != nil {
		t.Fatalf("calc: %v", err)
	}
	want := simpleVersion + "\n" + single + simpleVersion + "\n"
	if out != want {
		t.Fatalf("calc output = %q, want %q", out, want)
	}
}

func TestCalcJSON(t *testing.T) {
	g := simpleRepo(t)

	out, err := runSver(t, "calc", "-o", "json", g.Root)
	if err != nil {
		t.Fatalf("calc: %v", err)
	}
	var doc struct {
		Versions []struct {
			RepositoryRoot string `json:"repository_root"`
			Path           string `json:"path"`
			Version        string `json:"version"`
		} `json:"versions"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(doc.Versions) != 1 {
		t.Fatalf("versions = %+v, want one", doc.Versions)
	}
	v := doc.Versions[0]
	if v.RepositoryRoot != g.Root || v.Path != "" || v.Version != simpleVersion[:12] {
		t.Fatalf("version = %+v", v)
	}
}

func TestCalcRejectsUnknownFlags(t *testing.T) {
	g := simpleRepo(t)
	if _, err := runSver(t, "calc", "-o", "xml", g.Root); err == nil {
		t.Fatal("calc -o xml succeeded")
	}
	if _, err := runSver(t, "calc", "-l", "medium", g.Root); err == nil {
		t.Fatal("calc -l medium succeeded")
	}
}

func TestCalcFailsOutsideRepository(t *testing.T) {
	g := simpleRepo(t)
	_, err := runSver(t, "calc", g.Root, g.Path("missing"))
	if err == nil {
		t.Fatal("calc of missing path succeeded")
	}
	if !strings.Contains(err.Error(), g.Path("missing")) {
		t.Fatalf("error %q does not name the failing target", err)
	}
}

func TestListWithProfile(t *testing.T) {
	g := gittest.New(t)
	g.AddBlob("app/main.go", []byte("package main\n"))
	g.AddBlob("app/main_test.go", []byte("package main\n"))
	g.AddBlob("app/sver.toml", []byte("[default]\n[release]\nexcludes = [\"main_test.go\"]\n"))

	out, err := runSver(t, "list", g.Path("app"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if want := "app/main.go\napp/main_test.go\napp/sver.toml\n"; out != want {
		t.Fatalf("list = %q, want %q", out, want)
	}

	out, err = runSver(t, "list", g.Path("app")+":release")
	if err != nil {
		t.Fatalf("list release: %v", err)
	}
	if want := "app/main.go\napp/sver.toml\n"; out != want {
		t.Fatalf("list release = %q, want %q", out, want)
	}
}

func TestInitOutcomes(t *testing.T) {
	g := simpleRepo(t)

	out, err := runSver(t, "init", g.Path("service1"))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if want := "sver.toml is generated. path:service1\n"; out != want {
		t.Fatalf("init = %q, want %q", out, want)
	}
	if _, err := os.Stat(g.Path("service1/sver.toml")); err != nil {
		t.Fatalf("sver.toml not written: %v", err)
	}

	out, err = runSver(t, "init", g.Path("service1"))
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	if want := "sver.toml already exists, but is not committed. path:service1\n"; out != want {
		t.Fatalf("second init = %q, want %q", out, want)
	}

	g.AddBlob("service1/sver.toml", []byte("[default]\n"))
	out, err = runSver(t, "init", g.Path("service1"))
	if err != nil {
		t.Fatalf("third init: %v", err)
	}
	if want := "sver.toml already exists\n"; out != want {
		t.Fatalf("third init = %q, want %q", out, want)
	}
}

func TestValidate(t *testing.T) {
	g := simpleRepo(t)
	g.AddBlob("sver.toml", []byte("[default]\ndependencies = [\"service1\"]\n"))
	chdir(t, g.Root)

	out, err := runSver(t, "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if want := "[OK]\tsver.toml:[default]\n"; out != want {
		t.Fatalf("validate = %q, want %q", out, want)
	}

	g.AddBlob("service1/sver.toml", []byte("[default]\ndependencies = [\"gone\"]\nexcludes = [\"old.txt\"]\n"))
	out, err = runSver(t, "validate")
	if !errors.Is(err, errInvalidConfig) {
		t.Fatalf("validate error = %v, want errInvalidConfig", err)
	}
	// Index order puts service1/sver.toml before sver.toml.
	want := "[NG]\tservice1/sver.toml:[default]\n" +
		"\t\tinvalid_dependency:[\"gone\"]\n" +
		"\t\tinvalid_exclude:[\"old.txt\"]\n" +
		"[OK]\tsver.toml:[default]\n"
	if out != want {
		t.Fatalf("validate = %q, want %q", out, want)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		flag, env string
		want      slog.Level
	}{
		{"", "", slog.LevelWarn},
		{"", "debug", slog.LevelDebug},
		{"error", "debug", slog.LevelError},
		{"INFO", "", slog.LevelInfo},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.flag, tt.env)
		if err != nil {
			t.Fatalf("parseLevel(%q, %q): %v", tt.flag, tt.env, err)
		}
		if got != tt.want {
			t.Fatalf("parseLevel(%q, %q) = %v, want %v", tt.flag, tt.env, got, tt.want)
		}
	}
	if _, err := parseLevel("loud", ""); err == nil {
		t.Fatal("parseLevel(loud) succeeded")
	}
}

func TestDebugLoggingGoesToStderr(t *testing.T) {
	g := simpleRepo(t)
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"--log-level", "debug", "calc", g.Root})
	if err := root.Execute(); err != nil {
		t.Fatalf("calc: %v", err)
	}
	if out.String() != simpleVersion[:12]+"\n" {
		t.Fatalf("stdout = %q", out.String())
	}
	if !strings.Contains(errOut.String(), "level=DEBUG") {
		t.Fatalf("stderr has no debug records: %q", errOut.String())
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes
// the working directory and restores the previous one when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
