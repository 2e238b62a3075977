package output

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/odvcencio/sver/pkg/sver"
	"gopkg.in/yaml.v3"
)

var sample = []sver.Version{
	{RepositoryRoot: "/work/repo", Path: "", Version: "d601cac0967b58cd86a3a0384709f81ada1db3a42060e4458b843a7c7613b6ea"},
	{RepositoryRoot: "/work/repo", Path: "service1", Version: "edcd58dca3b80c45676296640e0f64a11366cc4762247cf3b8873e17b3328648"},
}

func render(t *testing.T, format Format, length Length) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := Write(&buf, sample, format, length); err != nil {
		t.Fatalf("Write(%s, %s): %v", format, length, err)
	}
	return buf.Bytes()
}

func TestVersionOnly(t *testing.T) {
	if got, want := string(render(t, VersionOnly, Short)), "d601cac0967b\nedcd58dca3b8\n"; got != want {
		t.Fatalf("short = %q, want %q", got, want)
	}
	want := sample[0].Version + "\n" + sample[1].Version + "\n"
	if got := string(render(t, VersionOnly, Long)); got != want {
		t.Fatalf("long = %q, want %q", got, want)
	}
}

func TestJSON(t *testing.T) {
	want := `{
  "versions": [
    {
      "repository_root": "/work/repo",
      "path": "",
      "version": "d601cac0967b"
    },
    {
      "repository_root": "/work/repo",
      "path": "service1",
      "version": "edcd58dca3b8"
    }
  ]
}
`
	if got := string(render(t, JSON, Short)); got != want {
		t.Fatalf("json = %s, want %s", got, want)
	}
}

func TestStructuredFormatsCarryAllFields(t *testing.T) {
	want := document{Versions: []versionRecord{
		{RepositoryRoot: "/work/repo", Path: "", Version: sample[0].Version},
		{RepositoryRoot: "/work/repo", Path: "service1", Version: sample[1].Version},
	}}

	var fromTOML document
	if _, err := toml.Decode(string(render(t, TOML, Long)), &fromTOML); err != nil {
		t.Fatalf("decode toml: %v", err)
	}
	if !reflect.DeepEqual(fromTOML, want) {
		t.Fatalf("toml = %+v, want %+v", fromTOML, want)
	}

	var fromYAML document
	if err := yaml.Unmarshal(render(t, YAML, Long), &fromYAML); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if !reflect.DeepEqual(fromYAML, want) {
		t.Fatalf("yaml = %+v, want %+v", fromYAML, want)
	}
}

func TestTOMLUsesArrayOfTables(t *testing.T) {
	if out := render(t, TOML, Short); !bytes.Contains(out, []byte("[[versions]]")) {
		t.Fatalf("toml output missing [[versions]]:\n%s", out)
	}
}

func TestParseFlags(t *testing.T) {
	for _, f := range Formats {
		if got, err := ParseFormat(string(f)); err != nil || got != f {
			t.Fatalf("ParseFormat(%q) = %q, %v", f, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("ParseFormat(xml) succeeded")
	}
	if got, err := ParseLength("long"); err != nil || got != Long {
		t.Fatalf("ParseLength(long) = %q, %v", got, err)
	}
	if _, err := ParseLength("medium"); err == nil {
		t.Fatal("ParseLength(medium) succeeded")
	}
}

func TestEmptyDocument(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil, JSON, Short); err != nil {
		t.Fatalf("Write(nil): %v", err)
	}
	if got, want := buf.String(), "{\n  \"versions\": []\n}\n"; got != want {
		t.Fatalf("empty json = %q, want %q", got, want)
	}
}
