package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryBackoffDoubles(t *testing.T) {
	assert.Equal(t, 5*time.Second, RetryBackoff(1))
	assert.Equal(t, 10*time.Second, RetryBackoff(2))
	assert.Equal(t, 20*time.Second, RetryBackoff(3))
	assert.Equal(t, 40*time.Second, RetryBackoff(4))
}

func TestRetryBackoffClampsAttempt(t *testing.T) {
	assert.Equal(t, BackoffBase, RetryBackoff(0))
	assert.Equal(t, BackoffBase, RetryBackoff(-3))
}

func TestIngestJobPayloadValidate(t *testing.T) {
	valid := IngestJobPayload{DocID: "d", CompanyID: "c", FilePath: "c/d/f.txt"}
	require.NoError(t, valid.Validate())

	cases := map[string]IngestJobPayload{
		"missing doc id":     {CompanyID: "c", FilePath: "f"},
		"missing company id": {DocID: "d", FilePath: "f"},
		"missing file path":  {DocID: "d", CompanyID: "c"},
	}
	for name, p := range cases {
		err := p.Validate()
		assert.ErrorIs(t, err, ErrInvalidJobPayload, name)
	}
}

func TestIngestJobPayloadWireFormat(t *testing.T) {
	p := IngestJobPayload{
		DocID:            "d1",
		CompanyID:        "c1",
		FilePath:         "c1/d1/f.txt",
		Visibility:       "employee",
		UploadedByUserID: "u1",
		Title:            "Handbook",
	}
	body, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	for _, key := range []string{"docId", "companyId", "filePath", "visibility", "uploadedByUserId", "title"} {
		assert.Contains(t, raw, key)
	}
}

func TestNoopEnqueuer(t *testing.T) {
	var enq Enqueuer = NoopEnqueuer{}
	assert.NoError(t, enq.Enqueue(context.Background(), IngestJobPayload{}))
}
