package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRemoveStagingDir(t *testing.T) {
	const prefix = ".staging-"

	tests := []struct {
		name    string
		setup   func(t *testing.T, rounds string) string
		refused bool
		gone    bool
	}{
		{
			name: "staging directory",
			setup: func(t *testing.T, rounds string) string {
				dir := filepath.Join(rounds, ".staging-000001-1")
				mustWrite(t, filepath.Join(dir, "checkpoint", "best.pt"))
				return dir
			},
			gone: true,
		},
		{
			name: "missing staging directory",
			setup: func(t *testing.T, rounds string) string {
				return filepath.Join(rounds, ".staging-000002-1")
			},
			gone: true,
		},
		{
			name: "published round",
			setup: func(t *testing.T, rounds string) string {
				dir := filepath.Join(rounds, "000001-1")
				mustWrite(t, filepath.Join(dir, "record.json"))
				return dir
			},
			refused: true,
		},
		{
			name: "rounds directory itself",
			setup: func(t *testing.T, rounds string) string {
				return rounds
			},
			refused: true,
		},
		{
			name: "nested inside staging",
			setup: func(t *testing.T, rounds string) string {
				dir := filepath.Join(rounds, ".staging-000001-1", ".staging-x")
				mustWrite(t, filepath.Join(dir, "f"))
				return dir
			},
			refused: true,
		},
		{
			name: "traversal out of rounds",
			setup: func(t *testing.T, rounds string) string {
				other := filepath.Join(filepath.Dir(rounds), ".staging-outside")
				mustWrite(t, filepath.Join(other, "f"))
				return filepath.Join(rounds, "..", ".staging-outside")
			},
			refused: true,
		},
		{
			name: "symlink to published round",
			setup: func(t *testing.T, rounds string) string {
				published := filepath.Join(rounds, "000003-1")
				mustWrite(t, filepath.Join(published, "record.json"))
				link := filepath.Join(rounds, ".staging-000003-1")
				if err := os.Symlink(published, link); err != nil {
					t.Fatal(err)
				}
				return link
			},
			refused: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rounds := filepath.Join(t.TempDir(), "sessions", "s1", "rounds")
			if err := os.MkdirAll(rounds, 0o755); err != nil {
				t.Fatal(err)
			}
			target := tt.setup(t, rounds)

			err := RemoveStagingDir(target, rounds, prefix)

			var refused *ErrRefusedRemove
			if got := errors.As(err, &refused); got != tt.refused {
				t.Fatalf("refused = %v, want %v (err = %v)", got, tt.refused, err)
			}
			if !tt.refused && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			_, statErr := os.Lstat(target)
			if tt.gone && !os.IsNotExist(statErr) {
				t.Errorf("%s still exists", target)
			}
			if tt.refused && statErr != nil {
				t.Errorf("refused target was touched: %v", statErr)
			}
		})
	}
}

func TestRemoveStagingDir_KeepsLinkTarget(t *testing.T) {
	rounds := t.TempDir()
	published := filepath.Join(rounds, "000001-1")
	mustWrite(t, filepath.Join(published, "record.json"))
	link := filepath.Join(rounds, ".staging-000001-1")
	if err := os.Symlink(published, link); err != nil {
		t.Fatal(err)
	}

	if err := RemoveStagingDir(link, rounds, ".staging-"); err == nil {
		t.Fatal("expected refusal for a symlinked staging path")
	}
	if _, err := os.Stat(filepath.Join(published, "record.json")); err != nil {
		t.Errorf("published record was removed: %v", err)
	}
}

func mustWrite(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}
