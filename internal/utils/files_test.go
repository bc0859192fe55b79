package utils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/saberlab/internal/utils"
)

func TestSafeWriteFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "deeper", "out.csv")
	if err := utils.SafeWriteFile(p, []byte("a,b\n")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "a,b\n" {
		t.Fatalf("content = %q", string(b))
	}
	if _, err := os.Stat(p + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestWriteJSON(t *testing.T) {
	p := filepath.Join(t.TempDir(), "run.json")
	if err := utils.WriteJSON(p, map[string]int{"rows": 3}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	b, _ := os.ReadFile(p)
	if !strings.Contains(string(b), "\"rows\": 3") {
		t.Fatalf("unexpected json: %s", b)
	}
}

func TestOutputPath(t *testing.T) {
	cases := []struct {
		explicit, dir, input, suffix, want string
	}{
		{"x.csv", "out", "data/raw.csv", "_split.csv", "x.csv"},
		{"", "out", "data/raw.csv", "_split.csv", filepath.Join("out", "raw_split.csv")},
		{"", "", "data/raw.xlsx", "_filtered.csv", filepath.Join("data", "raw_filtered.csv")},
	}
	for _, c := range cases {
		if got := utils.OutputPath(c.explicit, c.dir, c.input, c.suffix); got != c.want {
			t.Errorf("OutputPath(%q,%q,%q,%q) = %q, want %q", c.explicit, c.dir, c.input, c.suffix, got, c.want)
		}
	}
}
