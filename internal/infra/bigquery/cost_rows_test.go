package bigquery

import (
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRef_FullName(t *testing.T) {
	ref := TableRef{ProjectID: "proj", DatasetID: "billing", TableID: "cost_rows"}
	assert.Equal(t, "`proj.billing.cost_rows`", ref.FullName())
}

func TestCostRowSchema(t *testing.T) {
	schema, err := bigquery.InferSchema(CostRow{})
	require.NoError(t, err)

	byName := make(map[string]*bigquery.FieldSchema, len(schema))
	for _, f := range schema {
		byName[f.Name] = f
	}

	tests := []struct {
		field    string
		wantType bigquery.FieldType
		repeated bool
	}{
		{"export_date", bigquery.DateFieldType, false},
		{"exported_ts", bigquery.TimestampFieldType, false},
		{"cost", bigquery.FloatFieldType, false},
		{"rows", bigquery.IntegerFieldType, false},
		{"tags", bigquery.StringFieldType, true},
		{"line_item", bigquery.StringFieldType, false},
		{"imported_ts", bigquery.TimestampFieldType, false},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f, ok := byName[tt.field]
			require.True(t, ok, "missing field %s", tt.field)
			assert.Equal(t, tt.wantType, f.Type)
			assert.Equal(t, tt.repeated, f.Repeated)
		})
	}
}
