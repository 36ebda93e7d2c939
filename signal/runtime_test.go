package signal_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/roverlang/rover/signal"
	"github.com/roverlang/rover/value"
)

var _ = Describe("Runtime", func() {
	var rt *signal.Runtime

	BeforeEach(func() {
		rt = signal.New()
	})

	Describe("signal fan-out counting", func() {
		// spec.md §8 scenario 4.
		It("notifies the effect exactly once per distinct write, none for repeats, and none after dispose", func() {
			s := rt.CreateSignal(value.Int(0))
			d := rt.CreateDerived(func(r *signal.Runtime) value.Value {
				n, _ := r.ReadSignal(s).Int()
				return value.Int(n * 2)
			})

			runs := 0
			e := rt.CreateEffect(func(r *signal.Runtime) func() {
				r.ReadDerived(d)
				runs++
				return nil
			})
			Expect(runs).To(Equal(1))

			rt.SetSignal(s, value.Int(0)) // same value: no notification
			Expect(runs).To(Equal(1))

			rt.SetSignal(s, value.Int(1))
			Expect(runs).To(Equal(2))

			rt.Batch(func() {
				rt.SetSignal(s, value.Int(2))
				rt.SetSignal(s, value.Int(3))
				rt.SetSignal(s, value.Int(4))
			})
			Expect(runs).To(Equal(3), "a batch fires each subscriber at most once")

			rt.DisposeEffect(e)
			rt.SetSignal(s, value.Int(5))
			Expect(runs).To(Equal(3), "a disposed effect must never run again")
		})
	})

	Describe("diamond dependency", func() {
		// spec.md §8 scenario 5.
		It("recomputes the join at most once per dependency and sees the latest values", func() {
			a := rt.CreateSignal(value.Int(1))
			bRuns, cRuns := 0, 0
			b := rt.CreateDerived(func(r *signal.Runtime) value.Value {
				bRuns++
				n, _ := r.ReadSignal(a).Int()
				return value.Int(n + 1)
			})
			c := rt.CreateDerived(func(r *signal.Runtime) value.Value {
				cRuns++
				n, _ := r.ReadSignal(a).Int()
				return value.Int(n + 2)
			})
			d := rt.CreateDerived(func(r *signal.Runtime) value.Value {
				bv, _ := r.ReadDerived(b).Int()
				cv, _ := r.ReadDerived(c).Int()
				return value.Int(bv + cv)
			})

			got, _ := rt.ReadDerived(d).Int()
			Expect(got).To(Equal(int64(5)))
			Expect(bRuns).To(Equal(1))
			Expect(cRuns).To(Equal(1))

			rt.SetSignal(a, value.Int(10))
			got, _ = rt.ReadDerived(d).Int()
			Expect(got).To(Equal(int64(23)))
			Expect(bRuns).To(Equal(2), "b recomputes at most once after the write")
			Expect(cRuns).To(Equal(2), "c recomputes at most once after the write")
		})
	})

	Describe("read/write round trip", func() {
		It("returns the just-written value", func() {
			s := rt.CreateSignal(value.String("x"))
			rt.SetSignal(s, value.String("y"))
			Expect(rt.ReadSignal(s).String()).To(Equal("y"))
		})
	})

	Describe("version monotonicity", func() {
		It("bumps the version on every committed write and never on a no-op write", func() {
			s := rt.CreateSignal(value.Int(0))
			v0 := rt.SignalVersion(s)
			rt.SetSignal(s, value.Int(0))
			Expect(rt.SignalVersion(s)).To(Equal(v0), "equal value must not bump version")
			rt.SetSignal(s, value.Int(1))
			Expect(rt.SignalVersion(s)).To(Equal(v0 + 1))
		})
	})

	Describe("cycle detection", func() {
		It("returns the stale cached value instead of crashing", func() {
			var selfRef signal.DerivedId
			cycled := false
			rt.SetCycleHook(func(id signal.DerivedId) { cycled = true })

			selfRef = rt.CreateDerived(func(r *signal.Runtime) value.Value {
				return r.ReadDerived(selfRef)
			})
			v := rt.ReadDerived(selfRef)
			Expect(v).To(Equal(value.Nil), "a cycle with no prior value reads back nil")
			Expect(cycled).To(BeTrue())
		})
	})
})
