package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	before := testutil.ToFloat64(recordsSaved.WithLabelValues("single"))
	RecordSaved("single")
	assert.Equal(t, before+1, testutil.ToFloat64(recordsSaved.WithLabelValues("single")))

	beforeFailed := testutil.ToFloat64(submissionsFailed.WithLabelValues("capacity"))
	RecordSubmissionFailed("capacity")
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(submissionsFailed.WithLabelValues("capacity")))

	beforeSessions := testutil.ToFloat64(activeSessions)
	SessionOpened()
	SessionOpened()
	SessionClosed()
	assert.Equal(t, beforeSessions+1, testutil.ToFloat64(activeSessions))
	SessionClosed()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
