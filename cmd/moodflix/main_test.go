package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunLocalWatchlist(t *testing.T) {
	ctx := context.Background()
	storage := filepath.Join(t.TempDir(), "storage.json")

	exec := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		if err := run(ctx, "http://127.0.0.1:1", storage, args, strings.NewReader(""), &out); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	if got := exec("list"); !strings.Contains(got, "empty") {
		t.Errorf("list on empty storage = %q", got)
	}
	exec("add", "550", "Fight", "Club")
	exec("add", "550", "Fight", "Club")
	exec("add", "13")

	list := exec("list")
	if strings.Count(list, "\n") != 2 || !strings.Contains(list, "Fight Club") {
		t.Errorf("list = %q", list)
	}

	if got := exec("toggle", "550"); !strings.Contains(got, "completed") {
		t.Errorf("toggle = %q", got)
	}
	if got := exec("stats"); !strings.Contains(got, "Completed: 1 (50%)") {
		t.Errorf("stats = %q", got)
	}
	if got := exec("contains", "13"); strings.TrimSpace(got) != "true" {
		t.Errorf("contains = %q", got)
	}

	exec("remove", "13")
	if got := exec("contains", "13"); strings.TrimSpace(got) != "false" {
		t.Errorf("contains after remove = %q", got)
	}
	if got := exec("export"); !strings.Contains(got, `"version": "1.0"`) {
		t.Errorf("export = %q", got)
	}
	if got := exec("status"); !strings.Contains(got, "local watchlist") {
		t.Errorf("status = %q", got)
	}
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()
	storage := filepath.Join(t.TempDir(), "storage.json")
	var out bytes.Buffer

	cases := [][]string{
		{"add"},
		{"add", "abc"},
		{"remove", "42"},
		{"migrate"},
		{"bogus"},
		{"login"},
	}
	for _, args := range cases {
		if err := run(ctx, "http://127.0.0.1:1", storage, args, strings.NewReader(""), &out); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}
