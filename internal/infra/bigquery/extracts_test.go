package bigquery

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"testing"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/dvloznov/revenue-tracker/internal/ledger"
)

func TestQuery(t *testing.T) {
	for _, kind := range ledger.Kinds {
		t.Run(kind.String(), func(t *testing.T) {
			sql, err := Query(kind, "revenue")
			require.NoError(t, err)
			assert.Contains(t, sql, "@start_date")
			assert.Contains(t, sql, "@end_date")
			assert.Contains(t, sql, "`revenue.")
			assert.NotContains(t, sql, datasetPlaceholder)
			assert.Contains(t, sql, "transaction_created_date")
		})
	}

	_, err := Query(ledger.Kind(99), "revenue")
	assert.Error(t, err)
}

func TestQuery_DimensionColumns(t *testing.T) {
	for _, kind := range []ledger.Kind{ledger.KindOrganizerSales, ledger.KindOrganizerRefunds} {
		sql, err := Query(kind, "revenue")
		require.NoError(t, err)
		for _, col := range []ledger.Column{ledger.ColPaidTix, ledger.ColGTSntv, ledger.ColGTFntv, ledger.ColSalesFlag} {
			assert.True(t, strings.Contains(sql, string(col)), "%s missing %s", kind, col)
		}
	}
}

func TestToRawTable(t *testing.T) {
	schema := bigquery.Schema{
		{Name: "transaction_created_date", Type: bigquery.DateFieldType},
		{Name: "eventholder_user_id", Type: bigquery.StringFieldType},
		{Name: "sale__payment_amount__epp", Type: bigquery.NumericFieldType},
		{Name: "is_sale", Type: bigquery.BooleanFieldType},
		{Name: "PaidTix", Type: bigquery.IntegerFieldType},
	}
	day := civil.Date{Year: 2018, Month: 8, Day: 1}
	rows := [][]bigquery.Value{
		{day, "634364434", big.NewRat(105, 10), true, int64(12)},
		{civil.DateTime{Date: day}, nil, (*big.Rat)(nil), false},
	}

	got := ToRawTable(schema, rows)

	assert.Equal(t, []string{
		"transaction_created_date", "eventholder_user_id", "sale__payment_amount__epp", "is_sale", "PaidTix",
	}, got.Columns)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, []any{day, "634364434", 10.5, true, int64(12)}, got.Rows[0])
	assert.Equal(t, []any{day, nil, nil, false, nil}, got.Rows[1])
}

func TestToRawTable_Empty(t *testing.T) {
	got := ToRawTable(nil, nil)
	assert.Empty(t, got.Columns)
	assert.Empty(t, got.Rows)
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want QueryErrorKind
	}{
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden, Message: "Access Denied"}, ErrPermissionDenied},
		{"not found", &googleapi.Error{Code: http.StatusNotFound, Message: "Not found: Dataset"}, ErrNotFound},
		{"unauthorized", &googleapi.Error{Code: http.StatusUnauthorized}, ErrUnauthenticated},
		{"gateway timeout", &googleapi.Error{Code: http.StatusGatewayTimeout}, ErrDeadline},
		{"wrapped forbidden", fmt.Errorf("query: %w", &googleapi.Error{Code: http.StatusForbidden}), ErrPermissionDenied},
		{"deadline", fmt.Errorf("read: %w", context.DeadlineExceeded), ErrDeadline},
		{"no credentials", errors.New("google: could not find default credentials"), ErrUnauthenticated},
		{"generic", errors.New("boom"), ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translate(tt.err)

			var qe *QueryError
			require.True(t, errors.As(err, &qe))
			assert.Equal(t, tt.want, qe.Kind)
			assert.NotEmpty(t, qe.Hint)
			assert.ErrorIs(t, err, tt.err)
			assert.Contains(t, err.Error(), qe.Hint)
		})
	}

	assert.NoError(t, translate(nil))

	once := translate(errors.New("boom"))
	assert.Same(t, once, translate(once))
}
