package main

import (
	"strings"
	"testing"
)

func TestRun_BadConfig(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mysql")

	err := run()
	if err == nil {
		t.Fatal("run() should fail on an unknown storage driver")
	}
	if !strings.Contains(err.Error(), "STORAGE_DRIVER") {
		t.Errorf("run() error = %v, want a STORAGE_DRIVER error", err)
	}
}
