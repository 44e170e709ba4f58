package ingestion

import (
	"fmt"
	"io"
	"sort"
)

// Preview describes how a CSV would be mapped, without validating or importing it.
type Preview struct {
	Headers         []string          `json:"headers"`
	ColumnMapping   map[string]string `json:"column_mapping"`
	UnmappedColumns []string          `json:"unmapped_columns"`
	UnmappedFields  []string          `json:"unmapped_fields"`
	SampleRows      []Record          `json:"sample_rows"`
	TotalRows       int               `json:"total_rows"`
}

// Preview maps up to maxRows sample rows of r as kind and counts the rest.
func (c *CSVImporter) Preview(r io.Reader, kind Kind, maxRows int, custom map[string]string) (*Preview, error) {
	if _, ok := columnAliases[kind]; !ok {
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}

	reader, headers, err := c.open(r)
	if err != nil {
		return nil, err
	}

	mapping := custom
	if len(mapping) == 0 {
		mapping = BuildColumnMapping(headers, kind)
	}
	index := headerIndex(headers)

	p := &Preview{Headers: headers, ColumnMapping: mapping}

	mappedHeaders := make(map[string]struct{}, len(mapping))
	for _, h := range mapping {
		mappedHeaders[h] = struct{}{}
	}
	for _, h := range headers {
		if _, ok := mappedHeaders[h]; !ok {
			p.UnmappedColumns = append(p.UnmappedColumns, h)
		}
	}
	for field := range columnAliases[kind] {
		if _, ok := mapping[field]; !ok {
			p.UnmappedFields = append(p.UnmappedFields, field)
		}
	}
	sort.Strings(p.UnmappedFields)

	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", p.TotalRows+2, err)
		}
		if p.TotalRows < maxRows {
			p.SampleRows = append(p.SampleRows, mapRow(fields, mapping, index))
		}
		p.TotalRows++
	}

	return p, nil
}
