package sver

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		entry, base string
		want        bool
	}{
		{"doc", "doc", true},
		{"doc/a", "doc", true},
		{"doc/a/b", "doc", true},
		{"document", "doc", false},
		{"do", "doc", false},
		{"anything", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		if got := Match(tt.entry, tt.base); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.entry, tt.base, got, tt.want)
		}
	}
}

func TestNormalizeExclude(t *testing.T) {
	if got := NormalizeExclude("", "doc"); got != "doc" {
		t.Fatalf("NormalizeExclude(root) = %q, want doc", got)
	}
	if got := NormalizeExclude("svc", "doc"); got != "svc/doc" {
		t.Fatalf("NormalizeExclude(svc) = %q, want svc/doc", got)
	}
}

func TestContainableExcludesAreLocal(t *testing.T) {
	set := Closure{
		NewTarget("", "default"):    {"doc"},
		NewTarget("doc", "default"): {},
	}
	if !Containable("doc/README.txt", set) {
		t.Fatalf("doc/README.txt should be contained through the doc target")
	}

	set = Closure{NewTarget("", "default"): {"doc"}}
	if Containable("doc/README.txt", set) {
		t.Fatalf("doc/README.txt should be excluded")
	}
	if !Containable("docs/x", set) {
		t.Fatalf("docs/x should not be excluded by doc")
	}
}

func TestResolveLink(t *testing.T) {
	tests := []struct {
		link, text, want string
	}{
		{"linkdir/symlink", "../original/README.txt", "original/README.txt"},
		{"linkdir/symlink", "../original", "original"},
		{"a/b/link", "./c", "a/b/c"},
		{"a/link", "../../../x", "x"},
		{"link", "sub//dir/", "sub/dir"},
		{"a/link", "/etc/hosts", "a/etc/hosts"},
	}
	for _, tt := range tests {
		if got := ResolveLink(tt.link, tt.text); got != tt.want {
			t.Errorf("ResolveLink(%q, %q) = %q, want %q", tt.link, tt.text, got, tt.want)
		}
	}
}
