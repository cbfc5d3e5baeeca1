package gcsuploader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"nested object", "gs://revenue-extracts/2018-08/transactions.csv", "revenue-extracts", "2018-08/transactions.csv", false},
		{"top-level object", "gs://bucket/file.csv", "bucket", "file.csv", false},
		{"missing scheme", "bucket/file.csv", "", "", true},
		{"bucket only", "gs://bucket", "", "", true},
		{"empty object", "gs://bucket/", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	assert.Equal(t, "transactions.csv", ExtractFilenameFromGCSURI("gs://bucket/a/b/transactions.csv"))
	assert.Equal(t, "bucket", ExtractFilenameFromGCSURI("gs://bucket"))
}
