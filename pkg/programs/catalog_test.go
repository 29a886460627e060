package programs

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc"

	"github.com/antibyte/retrocalc/pkg/tibasic"
)

func TestBuiltinCatalogCompiles(t *testing.T) {
	entries, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	found := false
	for _, e := range entries {
		if _, err := tibasic.Compile(e.Source); err != nil {
			t.Errorf("%s does not compile: %v", e.Name, err)
		}
		if e.Name == "KEYDEMO" {
			found = true
		}
	}
	if !found {
		t.Error("catalog is missing KEYDEMO")
	}
}

func TestParseCatalogErrors(t *testing.T) {
	tests := map[string]string{
		"unknown field": heredoc.Doc(`
			programs:
			  - name: A
			    author: me
			    source: Disp 1
		`),
		"bad name": heredoc.Doc(`
			programs:
			  - name: 9LIVES
			    source: Disp 1
		`),
		"duplicate": heredoc.Doc(`
			programs:
			  - name: A
			    source: Disp 1
			  - name: a
			    source: Disp 2
		`),
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCatalog(strings.NewReader(doc)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestParseEmptyCatalog(t *testing.T) {
	entries, err := ParseCatalog(bytes.NewReader(nil))
	if err != nil || len(entries) != 0 {
		t.Errorf("empty catalog = %v, %v", entries, err)
	}
}

func TestSeedAddsOnlyMissingPrograms(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.Save(ctx, Program{Name: "ONE", Source: `Disp "MINE"`}); err != nil {
		t.Fatal(err)
	}
	entries, err := ParseCatalog(strings.NewReader(heredoc.Doc(`
		programs:
		  - name: one
		    source: Disp "CATALOG"
		  - name: two
		    description: second
		    source: Disp 2
		  - name: bad
		    source: For(
	`)))
	if err != nil {
		t.Fatal(err)
	}

	added, err := s.Seed(ctx, entries)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}
	one, _ := s.Get(ctx, "ONE")
	if one.Source != `Disp "MINE"` {
		t.Errorf("Seed overwrote ONE: %q", one.Source)
	}
	if two, err := s.Get(ctx, "TWO"); err != nil || two.Description != "second" {
		t.Errorf("TWO = %+v, %v", two, err)
	}

	again, err := s.Seed(ctx, entries)
	if err != nil || again != 0 {
		t.Errorf("second Seed = %d, %v", again, err)
	}
}
