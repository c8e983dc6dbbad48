package main

import (
	"os"
	"testing"
)

// chdir switches the working directory for the rest of the test and
// restores it on cleanup (stand-in for testing.T.Chdir, added in Go 1.24)
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
