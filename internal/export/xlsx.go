// Package export writes residence listings to spreadsheet files.
package export

import (
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/residence-finder/internal/annotation"
	"github.com/sells-group/residence-finder/internal/fields"
	"github.com/sells-group/residence-finder/internal/model"
)

// SheetName is the name of the single sheet written by WriteXLSX.
const SheetName = "Residencias"

// Header is the first row of the exported sheet.
var Header = []string{
	"Nombre", "Ciudad", "Dirección", "Precio", "Contacto", "Teléfonos", "Email", "Web",
	"Favorita", "Contactada", "Notas", "Servicios", "Opiniones", "Resumen",
}

// WriteXLSX writes one row per residence, in the given order, to w.
// Ratings and summary columns are left blank for residences without a summary.
func WriteXLSX(w io.Writer, residences []model.Residence, ann annotation.Snapshot, summaries map[string]model.Summary) error {
	f, err := build(residences, ann, summaries)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

// SaveXLSX is WriteXLSX to a file at path.
func SaveXLSX(path string, residences []model.Residence, ann annotation.Snapshot, summaries map[string]model.Summary) error {
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := WriteXLSX(out, residences, ann, summaries); err != nil {
		_ = out.Close()
		return err
	}
	return eris.Wrapf(out.Close(), "export: close %s", path)
}

func build(residences []model.Residence, ann annotation.Snapshot, summaries map[string]model.Summary) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}

	addStrings(sheet.AddRow(), Header)

	for _, r := range residences {
		row := sheet.AddRow()
		addStrings(row, []string{
			r.Name,
			fields.ExtractCity(r.Address),
			r.Address,
			r.PriceRange,
			strings.Join(r.ContactPersons, ", "),
			strings.Join(r.ContactPhones, ", "),
			r.Email,
			r.Website,
			yesNo(ann.Favorites.Has(r.Name)),
			yesNo(ann.Contacted.Has(r.Name)),
			ann.Notes[r.Name],
		})

		s, ok := summaries[r.Name]
		if !ok {
			addStrings(row, []string{"", "", ""})
			continue
		}
		row.AddCell().SetInt(s.Services)
		row.AddCell().SetInt(s.Opinions)
		row.AddCell().SetString(s.Summary)
	}
	return f, nil
}

func addStrings(row *xlsx.Row, values []string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}
