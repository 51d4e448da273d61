package cli

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestTriggerRejectsUnknownJob(t *testing.T) {
	srv := miniredis.RunT(t)
	jobsCLI, err := NewJobsCLI(srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = jobsCLI.Close() })

	_, err = jobsCLI.Trigger(context.Background(), "mail:send")
	require.ErrorContains(t, err, "unsupported job")
}

func TestNilCLIReportsMisconfiguration(t *testing.T) {
	var jobsCLI *JobsCLI
	_, err := jobsCLI.Trigger(context.Background(), "quota:overdue-scan")
	require.Error(t, err)
	_, err = jobsCLI.InspectQueue(context.Background())
	require.Error(t, err)
}
