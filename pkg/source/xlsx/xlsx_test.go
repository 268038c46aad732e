package xlsx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, sheet string, cells map[string]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		idx, err := f.NewSheet(sheet)
		if err != nil {
			t.Fatalf("creating sheet: %v", err)
		}
		f.SetActiveSheet(idx)
	}
	for axis, v := range cells {
		if err := f.SetCellValue(sheet, axis, v); err != nil {
			t.Fatalf("setting %s: %v", axis, err)
		}
	}

	path := filepath.Join(t.TempDir(), "input.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("saving workbook: %v", err)
	}
	return path
}

func TestRows(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", map[string]any{
		"A1": "INV001", "B1": "02/15/2022", "C1": "ACME", "D1": "100",
		"A2": "bad", "B2": "02/15/2022",
		"A3": "INV002", "B3": "03/15/2022",
	})

	rows, err := New(Config{Path: path}, nil).Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	first := rows[0]
	if first.Number != 1 {
		t.Errorf("row number: got %d, want 1", first.Number)
	}
	if first.Cell(0) != "INV001" || first.Cell(1) != "02/15/2022" || first.Cell(2) != "ACME" || first.Cell(3) != "100" {
		t.Errorf("unexpected cells: %v", first.Cells)
	}
	if rows[2].Cell(0) != "INV002" {
		t.Errorf("row 3 identifier: got %q", rows[2].Cell(0))
	}
	if rows[1].Cell(3) != "" {
		t.Errorf("missing cell should read empty, got %q", rows[1].Cell(3))
	}
}

func TestRows_ActiveSheet(t *testing.T) {
	path := writeWorkbook(t, "Invoices", map[string]any{
		"A1": "INV777", "B1": "01/01/2023",
	})

	rows, err := New(Config{Path: path}, nil).Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 1 || rows[0].Cell(0) != "INV777" {
		t.Fatalf("expected the active sheet to be read, got %v", rows)
	}
}

func TestRows_NamedSheetMissing(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", map[string]any{"A1": "INV001"})

	if _, err := New(Config{Path: path, Sheet: "Nope"}, nil).Rows(context.Background()); err == nil {
		t.Fatal("expected error for missing sheet")
	}
}

func TestRows_MissingFile(t *testing.T) {
	src := New(Config{Path: filepath.Join(t.TempDir(), "missing.xlsx")}, nil)
	if _, err := src.Rows(context.Background()); err == nil {
		t.Fatal("expected error for missing workbook")
	}
}
