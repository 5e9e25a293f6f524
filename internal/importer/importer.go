package importer

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"storefront/internal/domain"
	"storefront/internal/service/cart"
)

type ProductWriter interface {
	UpsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads product copy exports and writes them to the content store.
type CSVImporter struct {
	reader *csv.Reader
	writer ProductWriter
}

func NewCSVImporter(r io.Reader, writer ProductWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader: csvr,
		writer: writer,
	}
}

type csvRow struct {
	Handle      string
	Title       string
	Tagline     string
	Description string
	Benefits    []string
	VariantID   string
	Featured    bool
	ImageURLs   []string
}

// Run parses CSV rows and upserts products grouped by handle.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, errors.Wrap(err, "read headers")
	}
	index := headerIndex(headers)
	if _, ok := index["handle"]; !ok {
		return 0, errors.New("missing handle column")
	}

	var (
		current  *csvRow
		imported int
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, errors.Wrap(err, "read row")
		}

		row := parseRow(record, index)
		if row == nil {
			continue
		}

		if row.Handle != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current = row
			continue
		}

		// Continuation rows (images, extra benefits) belong to the current product.
		if current != nil {
			current.ImageURLs = append(current.ImageURLs, row.ImageURLs...)
			current.Benefits = append(current.Benefits, row.Benefits...)
		}
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	if row.Title == "" {
		return errors.Errorf("invalid product row (missing title) for handle %q", row.Handle)
	}
	p := domain.Product{
		Handle:      row.Handle,
		Title:       row.Title,
		Tagline:     row.Tagline,
		Description: row.Description,
		Benefits:    row.Benefits,
		Images:      row.ImageURLs,
		Featured:    row.Featured,
		VariantID:   cart.NormalizeMerchandiseID(row.VariantID),
	}
	if _, err := i.writer.UpsertProduct(ctx, p); err != nil {
		return errors.Wrapf(err, "upsert product %q", row.Handle)
	}
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) *csvRow {
	handle := pick(record, index, "handle")
	image := pick(record, index, "image_url")
	benefits := splitList(pick(record, index, "benefits"))

	if handle == "" && image == "" && len(benefits) == 0 {
		return nil
	}

	featured, _ := strconv.ParseBool(pick(record, index, "featured"))
	row := &csvRow{
		Handle:      strings.ToLower(handle),
		Title:       pick(record, index, "title"),
		Tagline:     pick(record, index, "tagline"),
		Description: pick(record, index, "description"),
		Benefits:    benefits,
		VariantID:   pick(record, index, "variant_id"),
		Featured:    featured,
	}
	if image != "" {
		row.ImageURLs = []string{image}
	}
	return row
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
