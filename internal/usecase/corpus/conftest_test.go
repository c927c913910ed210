package corpus

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type member struct {
	name string
	data []byte
}

func buildZip(t *testing.T, members ...member) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.name)
		if err != nil {
			t.Fatalf("zip create %s: %v", m.name, err)
		}
		if _, err := w.Write(m.data); err != nil {
			t.Fatalf("zip write %s: %v", m.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// buildWorkbook returns an .xlsx with one sheet per entry, in order.
func buildWorkbook(t *testing.T, sheets map[string][][]any, order ...string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, name := range order {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("new sheet: %v", err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				t.Fatalf("set row: %v", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func newTestLoader(t *testing.T, maxBytes int64) (*Loader, string) {
	t.Helper()
	tmp := t.TempDir()
	return New(Options{MaxFileBytes: maxBytes, TempDir: tmp}, zap.NewNop()), tmp
}
