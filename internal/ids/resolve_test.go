package ids

import (
	"testing"

	"github.com/google/uuid"

	"github.com/NielsdaWheelz/ctrain/internal/errors"
)

func TestResolveSessionID(t *testing.T) {
	known := []string{
		"3f2a9c10-0000-4000-8000-000000000001",
		"3f2b1111-0000-4000-8000-000000000002",
		"a1",
		"a1b2",
	}

	tests := []struct {
		name      string
		input     string
		want      string
		wantErr   string // "notfound", "ambiguous", or ""
		wantCands int
	}{
		{"exact", "a1", "a1", "", 0},
		{"exact beats prefix", "a1", "a1", "", 0},
		{"unique prefix", "3f2a", "3f2a9c10-0000-4000-8000-000000000001", "", 0},
		{"ambiguous prefix", "3f2", "", "ambiguous", 2},
		{"not found", "zz", "", "notfound", 0},
		{"whitespace trimmed", "  a1b  ", "a1b2", "", 0},
		{"empty", "   ", "", "notfound", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSessionID(tt.input, known)
			switch tt.wantErr {
			case "":
				if err != nil {
					t.Fatalf("ResolveSessionID() error = %v", err)
				}
				if got != tt.want {
					t.Errorf("ResolveSessionID() = %q, want %q", got, tt.want)
				}
			case "ambiguous":
				amb, ok := err.(*ErrAmbiguous)
				if !ok {
					t.Fatalf("error = %T, want *ErrAmbiguous", err)
				}
				if len(amb.Candidates) != tt.wantCands {
					t.Errorf("len(Candidates) = %d, want %d", len(amb.Candidates), tt.wantCands)
				}
			case "notfound":
				if _, ok := err.(*ErrNotFound); !ok {
					t.Fatalf("error = %T, want *ErrNotFound", err)
				}
			}
		})
	}
}

func TestResolveMapsErrorCodes(t *testing.T) {
	known := []string{"abc1", "abc2"}

	if _, err := Resolve("abc", known); errors.GetCode(err) != errors.ESessionIDAmbiguous {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.ESessionIDAmbiguous)
	}
	if _, err := Resolve("zzz", known); errors.GetCode(err) != errors.ESessionNotFound {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.ESessionNotFound)
	}
	if id, err := Resolve("abc2", known); err != nil || id != "abc2" {
		t.Errorf("Resolve() = %q, %v", id, err)
	}
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if a == b {
		t.Error("session ids must be unique")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("NewSessionID() = %q is not a uuid: %v", a, err)
	}
	if got := Short(a); len(got) != 8 {
		t.Errorf("Short() = %q", got)
	}
}
