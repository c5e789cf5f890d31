// Package fetcher retrieves uploaded spreadsheets from remote disks and decodes
// CSV, TSV and XLSX content into header-keyed rows.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
)

// DelimitedOptions configures StreamDelimited.
type DelimitedOptions struct {
	Delimiter rune // default ','
	Buffer    int  // row channel capacity; default 64
}

// StreamDelimited decodes CSV or TSV rows onto a channel. Cells are sent as
// strings typed any so delimited and XLSX grids share one shape. Quotes are
// parsed leniently and rows may differ in width. Both channels close when the
// input ends; at most one error is sent.
func StreamDelimited(ctx context.Context, r io.Reader, opts DelimitedOptions) (<-chan []any, <-chan error) {
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	rowCh := make(chan []any, opts.Buffer)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1
		reader.ReuseRecord = true

		for line := 1; ; line++ {
			if err := ctx.Err(); err != nil {
				errCh <- eris.Wrap(err, "delimited: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrapf(err, "delimited: read row %d", line)
				return
			}

			cells := make([]any, len(record))
			for i, field := range record {
				cells[i] = field
			}

			select {
			case rowCh <- cells:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "delimited: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadDelimited drains StreamDelimited into a grid.
func ReadDelimited(ctx context.Context, r io.Reader, opts DelimitedOptions) ([][]any, error) {
	rowCh, errCh := StreamDelimited(ctx, r, opts)
	var rows [][]any
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return rows, nil
}
