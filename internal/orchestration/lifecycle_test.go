package orchestration_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/driver"
	"github.com/imamik/ocp-installer/internal/orchestration"
	"github.com/imamik/ocp-installer/internal/provisioning"
	"github.com/imamik/ocp-installer/internal/state"
	testutil "github.com/imamik/ocp-installer/internal/testing"
)

var _ = Describe("Orchestrator", func() {
	var (
		ctx     context.Context
		root    string
		drv     *testutil.FakeDriver
		objects *testutil.MemoryObjects
		store   *state.Store
		orch    *orchestration.Orchestrator
	)

	newRecord := func(name string) *cluster.Record {
		return testutil.NewRecordBuilder(name, cluster.Hypershift).
			WithPhase(cluster.PhasePending).
			WithBucket("clusters").
			InDir(root).
			Build()
	}

	BeforeEach(func() {
		ctx = context.Background()
		root = GinkgoT().TempDir()
		drv = &testutil.FakeDriver{}
		objects = testutil.NewMemoryObjects()
		store = state.NewStore(state.NewRemoteStore(objects, ""))

		drivers := driver.NewRegistry()
		drivers.Register(drv, cluster.Hypershift)
		orch = orchestration.New(orchestration.Options{
			Drivers:        drivers,
			Store:          store,
			MaxConcurrency: 4,
		})
	})

	Describe("batch rollback", func() {
		It("destroys a ready cluster when its parallel sibling fails in provisioning", func() {
			drv.CreateFunc = func(pctx *provisioning.Context) error {
				if pctx.Record.Name == "cluster-b" {
					return fmt.Errorf("%w: hosted control plane never came up", cluster.ErrProvisioningFailed)
				}
				return nil
			}
			a, b := newRecord("cluster-a"), newRecord("cluster-b")

			records, err := orch.Create(ctx, []*cluster.Record{a, b}, true)

			Expect(err).To(MatchError(cluster.ErrProvisioningFailed))
			Expect(drv.Destroyed()).To(ConsistOf("cluster-a", "cluster-b"))
			Expect(a.Phase).To(Equal(cluster.PhaseDestroyed))
			Expect(b.Phase).To(Equal(cluster.PhaseDestroyed))
			Expect(orchestration.Summarize(records).Phases).NotTo(HaveKey(cluster.PhaseReady))
		})

		DescribeTable("leaves no ready cluster when cluster k fails",
			func(size, failing int, parallel bool) {
				records := make([]*cluster.Record, size)
				for i := range records {
					records[i] = newRecord(fmt.Sprintf("cluster-%d", i))
				}
				failName := records[failing].Name
				drv.CreateFunc = func(pctx *provisioning.Context) error {
					if pctx.Record.Name == failName {
						return errors.New("install failed")
					}
					return nil
				}

				records, err := orch.Create(ctx, records, parallel)
				Expect(err).To(HaveOccurred())

				for _, rec := range records {
					Expect(rec.ReachedProvisioning).To(BeTrue(), rec.Name)
					Expect(rec.Phase).To(Equal(cluster.PhaseDestroyed), rec.Name)
				}
				Expect(drv.Destroyed()).To(HaveLen(size))
				Expect(objects.Keys()).To(BeEmpty())
			},
			Entry("first of three, sequential", 3, 0, false),
			Entry("last of three, sequential", 3, 2, false),
			Entry("middle of five, parallel", 5, 2, true),
			Entry("single cluster", 1, 0, true),
		)

		It("does not destroy clusters that never reached provisioning", func() {
			drv.ResolveErr = errors.New("catalog unavailable")
			rec := newRecord("cluster-a")

			_, err := orch.Create(ctx, []*cluster.Record{rec}, false)

			Expect(err).To(HaveOccurred())
			Expect(rec.Phase).To(Equal(cluster.PhaseFailed))
			Expect(drv.Destroyed()).To(BeEmpty())
		})
	})

	Describe("checkpoint round trip", func() {
		It("destroys a cluster rebuilt from its snapshot alone", func() {
			rec := newRecord("cluster-a")
			_, err := orch.Create(ctx, []*cluster.Record{rec}, false)
			Expect(err).NotTo(HaveOccurred())
			dir, clusterID, version := rec.Dir, rec.ClusterID, rec.Version
			Expect(objects.Keys()).To(ConsistOf("clusters/cluster-a-0123456789ab.zip"))

			drv.DestroyFunc = func(pctx *provisioning.Context) error {
				if pctx.Record.ClusterID != clusterID || pctx.Record.Version != version {
					return fmt.Errorf("%w: snapshot lost cluster identity", cluster.ErrDestroyFailed)
				}
				return nil
			}
			loaded, err := store.Local.Load(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Phase).To(Equal(cluster.PhaseReady))
			Expect(loaded.Parameters.Hosted).NotTo(BeNil())

			records, err := orch.Destroy(ctx, []*cluster.Record{loaded}, false)

			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].Phase).To(Equal(cluster.PhaseDestroyed))
			Expect(dir).NotTo(BeADirectory())
			Expect(objects.Keys()).To(BeEmpty())
		})

		It("destroys a cluster restored from its remote archive", func() {
			rec := newRecord("cluster-a")
			_, err := orch.Create(ctx, []*cluster.Record{rec}, false)
			Expect(err).NotTo(HaveOccurred())

			restored, err := store.Remote.RestoreAll(ctx, "clusters", "", GinkgoT().TempDir())
			Expect(err).NotTo(HaveOccurred())
			Expect(restored).To(HaveLen(1))
			Expect(restored[0].ClusterID).To(Equal(rec.ClusterID))

			_, err = orch.Destroy(ctx, restored, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(objects.Keys()).To(BeEmpty())
		})
	})
})
