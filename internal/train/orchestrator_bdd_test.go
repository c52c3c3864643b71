package train_test

import (
	"context"
	"errors"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/neuralfmu/internal/dynamo"
	"github.com/san-kum/neuralfmu/internal/train"
)

type scalar struct{ p []float64 }

func (s *scalar) Params() []float64 { return append([]float64(nil), s.p...) }

func (s *scalar) SetParams(p []float64) error {
	copy(s.p, p)
	return nil
}

func (s *scalar) loss(context.Context) (float64, error) {
	return (s.p[0] - 3) * (s.p[0] - 3), nil
}

var _ = Describe("Orchestrator", func() {
	var (
		model  *scalar
		logger *slog.Logger
		phases []train.Phase
	)

	BeforeEach(func() {
		model = &scalar{p: []float64{0}}
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		phases = nil
	})

	record := train.CallbackFunc(func(s train.State) error {
		phases = append(phases, s.Phase)
		return nil
	})

	It("starts idle", func() {
		o, err := train.New(model, model.loss, train.Config{Iterations: 1})
		Expect(err).NotTo(HaveOccurred())
		st := o.State()
		Expect(st.Phase).To(Equal(train.Idle))
		Expect(st.Iteration).To(BeZero())
	})

	Context("when the iteration budget is spent", func() {
		It("converges after exactly N updates", func() {
			o, err := train.New(model, model.loss, train.Config{Iterations: 6, CallbackEvery: 2},
				train.WithCallback(record), train.WithLogger(logger))
			Expect(err).NotTo(HaveOccurred())

			st, err := o.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Phase).To(Equal(train.Converged))
			Expect(st.Phase.Done()).To(BeTrue())
			Expect(st.Iteration).To(Equal(6))
			Expect(o.History()).To(HaveLen(6))
		})

		It("reports every callback from the updated phase", func() {
			o, err := train.New(model, model.loss, train.Config{Iterations: 6, CallbackEvery: 2},
				train.WithCallback(record), train.WithLogger(logger))
			Expect(err).NotTo(HaveOccurred())
			_, err = o.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(phases).To(Equal([]train.Phase{train.Updated, train.Updated, train.Updated}))
		})

		It("moves parameters toward the minimum", func() {
			o, err := train.New(model, model.loss, train.Config{Iterations: 50},
				train.WithOptimizer(&train.Descent{LR: 0.1}), train.WithLogger(logger))
			Expect(err).NotTo(HaveOccurred())
			_, err = o.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(model.p[0]).To(BeNumerically("~", 3, 1e-3))
		})
	})

	Context("when the simulator fails", func() {
		It("aborts and surfaces the error", func() {
			failing := func(context.Context) (float64, error) {
				return 0, &dynamo.SimulationError{Step: 1, Time: 0.1, Wrapped: dynamo.ErrStepFailed}
			}
			o, err := train.New(model, failing, train.Config{Iterations: 3}, train.WithLogger(logger))
			Expect(err).NotTo(HaveOccurred())

			st, err := o.Run(context.Background())
			Expect(err).To(MatchError(dynamo.ErrStepFailed))
			Expect(st.Phase).To(Equal(train.Aborted))
			Expect(st.Iteration).To(BeZero())
			Expect(o.State().Err).To(HaveOccurred())
		})
	})

	Context("when a callback fails", func() {
		It("keeps training", func() {
			o, err := train.New(model, model.loss, train.Config{Iterations: 4, CallbackEvery: 1},
				train.WithCallback(train.CallbackFunc(func(train.State) error { return errors.New("disk full") })),
				train.WithLogger(logger))
			Expect(err).NotTo(HaveOccurred())

			st, err := o.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Phase).To(Equal(train.Converged))
		})
	})

	Context("after Reset", func() {
		It("returns to idle with a fresh counter", func() {
			o, err := train.New(model, model.loss, train.Config{Iterations: 2}, train.WithLogger(logger))
			Expect(err).NotTo(HaveOccurred())
			_, err = o.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			o.Reset()
			Expect(o.State().Phase).To(Equal(train.Idle))
			Expect(o.State().Iteration).To(BeZero())
			Expect(o.History()).To(BeEmpty())
		})
	})
})
