package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/reefconnect/scubadex-engine/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGlobalRegistry(t *testing.T) {
	Convey("Given the global metrics registry", t, func() {
		reg := metrics.GetRegistry()

		Convey("Then it should be available", func() {
			So(reg, ShouldNotBeNil)
		})

		Convey("Then gathering should succeed", func() {
			families, err := reg.Gather()
			So(err, ShouldBeNil)
			So(families, ShouldNotBeNil)
		})
	})
}

func TestRecorders(t *testing.T) {
	Convey("Given the package-level recorders", t, func() {
		Convey("Then none of them should panic", func() {
			So(func() {
				metrics.RecordEventApplied()
				metrics.RecordEventDuplicate()
				metrics.RecordEventMalformed()
				metrics.RecordEventDeadLetter()
				metrics.RecordFoldLatency(1.5)
				metrics.RecordDriftDetected()
				metrics.RecordBadgeAwarded()
				metrics.RecordLedgerClaim()
				metrics.UpdateLedgerSize(10)
				metrics.UpdateTrackedUsers(3)
				metrics.RecordLeaderboardRebuild("total_dives")
				metrics.RecordLeaderboardRebuildDuration(2.0)
				metrics.RecordReconcileRun("full")
				metrics.RecordReconcileFailure()
				metrics.RecordReconcileSuperseded()
				metrics.RecordReconcileDuration(7.0)
				metrics.UpdateQueueCapacity(1000)
				metrics.UpdateQueueSize(5)
				metrics.UpdateQueueUtilization(0.005)
				metrics.RecordQueueEnqueue()
				metrics.RecordQueueDequeue()
				metrics.RecordQueueEnqueueError()
				metrics.UpdateWorkerCount(4)
				metrics.RecordWorkerProcessingLatency(3.0)
				metrics.RecordWorkerError()
				metrics.RecordWorkerRetry()
				metrics.RecordHTTPRequest("scubadex", "GET", "200")
				metrics.RecordHTTPRequestDuration("scubadex", "GET", "200", 1.0)
				metrics.RecordErrorByComponent("worker", "store_error")
			}, ShouldNotPanic)
		})
	})
}

func TestNewManagerIsolatedRegistry(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		// A fresh registry avoids duplicate registration with the global manager.
		m := metrics.NewManager(
			metrics.WithNamespace("reefconnect_test"),
			metrics.WithSubsystem("scubadex_test"),
			metrics.WithPrometheusRegistry(prometheus.NewRegistry()),
		)

		Convey("Then construction should succeed", func() {
			So(m, ShouldNotBeNil)
		})
	})
}
