package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"materiel-inventory-api/internal/history"
	"materiel-inventory-api/internal/model"
)

// SheetName is the worksheet holding exported records.
const SheetName = "Matériel"

// Column headers of the exported documents
var (
	RecordHeaders  = []string{"ID-RT", "Type", "Usage", "Modèle", "Marque", "N° série", "Quantité", "Statut", "CIS affectation", "Vecteur"}
	HistoryHeaders = []string{"Date", "Action", "ID Matériel", "Utilisateur", "Détails"}
)

// Content types of the exported documents
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// FileName builds a dated download name such as materiel_2024-03-01.csv.
func FileName(base, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", base, now.Format("2006-01-02"), ext)
}

// WriteRecordsCSV writes records in the given order.
func WriteRecordsCSV(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RecordHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(recordRow(r)); err != nil {
			return fmt.Errorf("write record %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush records: %w", err)
	}
	return nil
}

// WriteHistoryCSV writes entries in the given order; callers pass them newest
// first.
func WriteHistoryCSV(w io.Writer, entries []model.HistoryEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(HistoryHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		row := []string{e.DisplayDate, string(e.Action), e.RecordID, e.Actor, history.Summary(e)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write history entry %s: %w", e.EntryID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush history: %w", err)
	}
	return nil
}

// WriteRecordsXLSX writes records as a single-sheet workbook.
func WriteRecordsXLSX(w io.Writer, records []model.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(RecordHeaders))
	for i, h := range RecordHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{r.ID, r.Type, r.Usage, r.Model, r.Brand, r.SerialNumber,
			r.Quantity, r.Status, r.Location, r.Assignment}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write record %s: %w", r.ID, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func recordRow(r model.Record) []string {
	return []string{r.ID, r.Type, r.Usage, r.Model, r.Brand, r.SerialNumber,
		strconv.Itoa(r.Quantity), r.Status, r.Location, r.Assignment}
}
