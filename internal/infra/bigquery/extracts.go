// Package bigquery loads the raw revenue extracts from BigQuery.
package bigquery

import (
	"context"
	"embed"
	"fmt"
	"math/big"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/revenue-tracker/internal/ledger"
	"github.com/dvloznov/revenue-tracker/internal/source"
)

const datasetPlaceholder = "{dataset}"

//go:embed queries/*.sql
var queries embed.FS

// Query returns the SQL of kind with the dataset substituted.
func Query(kind ledger.Kind, dataset string) (string, error) {
	b, err := queries.ReadFile("queries/" + kind.String() + ".sql")
	if err != nil {
		return "", fmt.Errorf("Query: no query for %s: %w", kind, err)
	}
	return strings.ReplaceAll(string(b), datasetPlaceholder, dataset), nil
}

// ExtractRepository runs the extract queries over a shared BigQuery client.
type ExtractRepository struct {
	client  *bigquery.Client
	dataset string
}

// NewExtractRepository creates a repository with its own client.
func NewExtractRepository(ctx context.Context, projectID, dataset string) (*ExtractRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewExtractRepository: creating client: %w", translate(err))
	}
	return &ExtractRepository{client: client, dataset: dataset}, nil
}

// Close closes the BigQuery client connection.
func (r *ExtractRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Load implements source.Loader.
func (r *ExtractRepository) Load(ctx context.Context, kind ledger.Kind, w source.Window) (ledger.RawTable, error) {
	return LoadExtractWithClient(ctx, r.client, r.dataset, kind, w)
}

// LoadExtractWithClient runs the query of kind for w using the provided
// client. Failures are returned as *QueryError.
func LoadExtractWithClient(ctx context.Context, client *bigquery.Client, dataset string, kind ledger.Kind, w source.Window) (ledger.RawTable, error) {
	sql, err := Query(kind, dataset)
	if err != nil {
		return ledger.RawTable{}, err
	}

	q := client.Query(sql)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: w.Start.String()},
		{Name: "end_date", Value: w.End.String()},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return ledger.RawTable{}, fmt.Errorf("LoadExtract %s: query read: %w", kind, translate(err))
	}

	var rows [][]bigquery.Value
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return ledger.RawTable{}, fmt.Errorf("LoadExtract %s: iter next: %w", kind, translate(err))
		}
		rows = append(rows, row)
	}

	return ToRawTable(it.Schema, rows), nil
}

// ToRawTable maps query rows onto a raw table named by the schema fields.
func ToRawTable(schema bigquery.Schema, rows [][]bigquery.Value) ledger.RawTable {
	t := ledger.RawTable{Columns: make([]string, len(schema))}
	for i, f := range schema {
		t.Columns[i] = f.Name
	}
	for _, row := range rows {
		cells := make([]any, len(t.Columns))
		for i := range cells {
			if i < len(row) {
				cells[i] = cellValue(row[i])
			}
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// cellValue converts the BigQuery value types the normalizer does not read.
func cellValue(v bigquery.Value) any {
	switch x := v.(type) {
	case *big.Rat:
		if x == nil {
			return nil
		}
		f, _ := x.Float64()
		return f
	case civil.DateTime:
		return x.Date
	case []byte:
		return string(x)
	}
	return v
}

var _ source.Loader = (*ExtractRepository)(nil)
