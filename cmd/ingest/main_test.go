package main

import (
	"os"
	"testing"
)

func TestRunIngest_MissingDatabaseURL(t *testing.T) {
	// Save original environment
	originalDatabaseURL := os.Getenv("DATABASE_URL")
	defer os.Setenv("DATABASE_URL", originalDatabaseURL)

	os.Unsetenv("DATABASE_URL")

	err := runIngest()
	if err == nil {
		t.Fatal("runIngest() should fail without DATABASE_URL")
	}
}
