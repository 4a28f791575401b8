package payment

import (
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gildgarde/backend-boutique/internal/obs"
)

func TestMain(m *testing.M) {
	obs.MustRegisterDomainMetrics("test", prometheus.NewRegistry())
	os.Exit(m.Run())
}
