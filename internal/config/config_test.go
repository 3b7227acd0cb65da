package config

import "testing"

func TestIsExcludedLib(t *testing.T) {
	cfg := Default()
	cfg.ExcludeLibs = []string{"libc.a", "libm.a"}

	if !cfg.IsExcludedLib("libc.a") {
		t.Error("libc.a should be excluded")
	}
	if cfg.IsExcludedLib("libfoo.a") {
		t.Error("libfoo.a was never named and should not be excluded")
	}

	cfg.ExcludeLibs = []string{"ALL"}
	if !cfg.IsExcludedLib("libanything.a") {
		t.Error("ALL should exclude every archive")
	}
}

func TestIsWrapped(t *testing.T) {
	cfg := Default()
	cfg.Wrap = []string{"malloc", "free"}

	if !cfg.IsWrapped("malloc") {
		t.Error("malloc should be wrapped")
	}
	if cfg.IsWrapped("calloc") {
		t.Error("calloc was never named and should not be wrapped")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.GCSections {
		t.Error("gc-sections should default off")
	}
	if cfg.UnresolvedSymbols != UnresolvedError {
		t.Error("unresolved symbols should default to fatal")
	}
	if !cfg.HashStyleSysv {
		t.Error("sysv hash style should be the default")
	}
}
