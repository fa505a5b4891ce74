package testsupport

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// LoadFixture reads a fixture file and fails the test if it is missing.
// Paths are relative to the test package directory.
func LoadFixture(tb testing.TB, path string) []byte {
	tb.Helper()
	return readAll(tb, path, "fixture")
}

// LoadFixtureJSON reads a JSON fixture file and unmarshals it into dest.
func LoadFixtureJSON(tb testing.TB, path string, dest any) {
	tb.Helper()

	data := LoadFixture(tb, path)
	if err := json.Unmarshal(data, dest); err != nil {
		tb.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadGolden reads the expected output recorded in a golden file.
func LoadGolden(tb testing.TB, path string) []byte {
	tb.Helper()
	return readAll(tb, path, "golden file")
}

// WriteGolden records data as the expected output at path, creating parent
// directories as needed. Call it only when intentionally updating goldens.
func WriteGolden(tb testing.TB, path string, data []byte) {
	tb.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		tb.Fatalf("failed to create directory for golden file %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		tb.Fatalf("failed to write golden file to %s: %v", path, err)
	}
}

// CompareWithGolden checks actual against the golden file at path. A missing
// golden file is bootstrapped from actual instead of failing, so the first
// run of a new test records its expectation.
func CompareWithGolden(tb testing.TB, path string, actual []byte) {
	tb.Helper()

	expected, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		tb.Logf("golden file %s missing, writing current output", path)
		WriteGolden(tb, path, actual)
		return
	}
	if err != nil {
		tb.Fatalf("failed to read golden file %s: %v", path, err)
	}

	if !bytes.Equal(actual, expected) {
		tb.Errorf("output differs from golden file %s:\nwant:\n%s\ngot:\n%s", path, expected, actual)
	}
}

// FixturePath builds the conventional path for a fixture file.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// GoldenPath builds the conventional path for a golden file.
func GoldenPath(filename string) string {
	return filepath.Join("testdata", "golden", filename)
}

func readAll(tb testing.TB, path, what string) []byte {
	tb.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("failed to load %s from %s: %v", what, path, err)
	}
	return data
}
