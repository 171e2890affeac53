package storage_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/frc4533-lincoln/robudst/storage"
)

var _ = Describe("storage / StateStore", func() {
	Describe("Close()", func() {
		It("does not panic when closed twice", func() {
			store := storage.NewStateStore()
			defer store.Close()

			Expect(func() { store.Close() }).NotTo(Panic())
			Expect(func() { store.Close() }).NotTo(Panic())
		})
	})

	It("an empty store snapshots to {}", func() {
		store := storage.NewStateStore()
		defer store.Close()

		Expect(string(store.Snapshot())).To(Equal(`{}`))
	})

	It("stores and returns dotted-path keys", func() {
		store := storage.NewStateStore()
		defer store.Close()

		Expect(store.Set("robot.status", "enabled")).To(Succeed())
		Expect(store.Set("robot.battery", 12.31)).To(Succeed())

		Expect(string(store.Get("robot.status"))).To(Equal(`"enabled"`))
		Expect(string(store.Get("robot.battery"))).To(Equal(`12.31`))
	})

	It("snapshots the whole document", func() {
		store := storage.NewStateStore()
		defer store.Close()

		Expect(store.Set("robot.status", "disabled")).To(Succeed())
		Expect(string(store.Snapshot())).To(Equal(`{"robot":{"status":"disabled"}}`))
	})

	It("returns nothing for a missing key", func() {
		store := storage.NewStateStore()
		defer store.Close()

		Expect(store.Get("robot.nope")).To(BeEmpty())
	})

	It("notifies listeners of updates", func() {
		store := storage.NewStateStore()
		defer store.Close()

		updates := store.ListenToUpdates()

		Expect(store.Set("robot.mode", "teleop")).To(Succeed())

		var update *storage.Update
		Eventually(updates).Should(Receive(&update))
		Expect(update.Key).To(Equal("robot.mode"))
		Expect(string(update.Value)).To(Equal(`"teleop"`))
	})

	It("drops updates rather than blocking a listener that lags", func() {
		store := storage.NewStateStore()
		defer store.Close()

		store.ListenToUpdates()

		// Far more writes than the update buffer holds; Set must not stall.
		for i := 0; i < 1000; i++ {
			Expect(store.Set("robot.canUtilization", i)).To(Succeed())
		}
	})
})
