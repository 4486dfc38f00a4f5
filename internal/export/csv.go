package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Header is the fixed CSV column order.
var Header = []string{
	"Provider",
	"Account",
	"Service",
	"ProductApp",
	"Tags",
	"Cost",
	"SharePercent",
	"Rows",
	"LineItems",
	"RecordType",
	"LineItem",
	"ImportedAt",
	"FilterProductApp",
	"ServiceColumn",
	"CostColumn",
	"DetailColumn",
	"ChargeTypeColumn",
	"UsageDateColumn",
}

// WriteOptions controls CSV output.
type WriteOptions struct {
	// BOMPrefix writes a UTF-8 byte order mark first so spreadsheet tools
	// pick the right encoding.
	BOMPrefix bool
}

// Record renders the row in Header order.
func (r Row) Record() []string {
	imported := ""
	if !r.ImportedAt.IsZero() {
		imported = r.ImportedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		r.Provider,
		r.Account,
		r.Service,
		r.ProductApp,
		JoinTags(r.Tags),
		strconv.FormatFloat(r.Cost, 'f', 2, 64),
		strconv.FormatFloat(r.SharePercent, 'f', 2, 64),
		strconv.Itoa(r.Rows),
		strconv.Itoa(r.LineItems),
		r.RecordType,
		r.LineItem,
		imported,
		r.FilterProductApp,
		r.Columns.Service,
		r.Columns.Cost,
		r.Columns.Detail,
		r.Columns.ChargeType,
		r.Columns.UsageDate,
	}
}

// WriteCSV writes the header and rows to w.
func WriteCSV(w io.Writer, rows []Row, opts WriteOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("WriteCSV: writing BOM: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("WriteCSV: writing header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return fmt.Errorf("WriteCSV: writing row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: flushing: %w", err)
	}
	return nil
}
