package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phillip-england/hrms/internal/logging"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown := Setup(context.Background(), Config{ServiceName: "hrms-test"}, logging.Discard())
	require.NoError(t, shutdown(context.Background()))
}
