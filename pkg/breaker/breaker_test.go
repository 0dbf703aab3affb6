package breaker_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Think-Big-Media/warroom-healthguard/pkg/breaker"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestBreaker(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Circuit Breaker Suite")
}

var _ = Describe("Circuit Breaker State Management", func() {
	var logger *logrus.Logger

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.ErrorLevel)
	})

	Context("initial state", func() {
		It("should start closed with the configured thresholds", func() {
			b := breaker.New("/api/v1/status", 3, 2, 30*time.Second, logger)

			Expect(b.State()).To(Equal(breaker.StateClosed))
			Expect(b.Name()).To(Equal("/api/v1/status"))
			Expect(b.FailureCount()).To(Equal(uint32(0)))
		})
	})

	Context("closed to open", func() {
		It("stays closed and resets the failure count on success", func() {
			b := breaker.New("/api/v1/status", 3, 2, 30*time.Second, logger)

			Expect(b.Execute(context.Background(), func(ctx context.Context) error {
				return fmt.Errorf("boom")
			})).To(HaveOccurred())
			Expect(b.FailureCount()).To(Equal(uint32(1)))

			Expect(b.Execute(context.Background(), func(ctx context.Context) error {
				return nil
			})).To(Succeed())
			Expect(b.FailureCount()).To(Equal(uint32(0)))
			Expect(b.State()).To(Equal(breaker.StateClosed))
		})

		It("trips to open once consecutive failures reach the threshold", func() {
			b := breaker.New("/api/v1/status", 3, 2, 30*time.Second, logger)

			for i := 0; i < 3; i++ {
				_ = b.Execute(context.Background(), func(ctx context.Context) error {
					return fmt.Errorf("failure")
				})
			}

			Expect(b.State()).To(Equal(breaker.StateOpen))
			Expect(b.NextProbeAllowedAt()).To(BeTemporally(">", time.Now()))
		})
	})

	Context("open", func() {
		It("rejects calls with breakerOpen before the recovery window elapses", func() {
			b := breaker.New("/api/v1/status", 2, 2, 50*time.Millisecond, logger)

			for i := 0; i < 2; i++ {
				_ = b.Execute(context.Background(), func(ctx context.Context) error {
					return fmt.Errorf("failure")
				})
			}
			Expect(b.State()).To(Equal(breaker.StateOpen))

			err := b.Execute(context.Background(), func(ctx context.Context) error {
				return nil
			})
			Expect(err).To(HaveOccurred())
		})

		It("moves to half-open once the recovery window elapses", func() {
			b := breaker.New("/api/v1/status", 2, 2, 20*time.Millisecond, logger)

			for i := 0; i < 2; i++ {
				_ = b.Execute(context.Background(), func(ctx context.Context) error {
					return fmt.Errorf("failure")
				})
			}
			Expect(b.State()).To(Equal(breaker.StateOpen))

			time.Sleep(30 * time.Millisecond)

			Expect(b.Execute(context.Background(), func(ctx context.Context) error {
				return nil
			})).To(Succeed())
		})
	})

	Context("half-open", func() {
		It("closes after successThreshold consecutive successes", func() {
			b := breaker.New("/api/v1/status", 2, 2, 10*time.Millisecond, logger)

			for i := 0; i < 2; i++ {
				_ = b.Execute(context.Background(), func(ctx context.Context) error {
					return fmt.Errorf("failure")
				})
			}
			time.Sleep(15 * time.Millisecond)

			Expect(b.Execute(context.Background(), func(ctx context.Context) error { return nil })).To(Succeed())
			Expect(b.Execute(context.Background(), func(ctx context.Context) error { return nil })).To(Succeed())

			Expect(b.State()).To(Equal(breaker.StateClosed))
		})

		It("reopens immediately on a half-open failure", func() {
			b := breaker.New("/api/v1/status", 2, 2, 10*time.Millisecond, logger)

			for i := 0; i < 2; i++ {
				_ = b.Execute(context.Background(), func(ctx context.Context) error {
					return fmt.Errorf("failure")
				})
			}
			time.Sleep(15 * time.Millisecond)

			err := b.Execute(context.Background(), func(ctx context.Context) error {
				return fmt.Errorf("still failing")
			})
			Expect(err).To(HaveOccurred())
			Expect(b.State()).To(Equal(breaker.StateOpen))
		})
	})

	Context("Reset", func() {
		It("force-transitions to closed with counters zeroed", func() {
			b := breaker.New("/api/v1/status", 2, 2, time.Minute, logger)

			for i := 0; i < 2; i++ {
				_ = b.Execute(context.Background(), func(ctx context.Context) error {
					return fmt.Errorf("failure")
				})
			}
			Expect(b.State()).To(Equal(breaker.StateOpen))

			b.Reset()

			Expect(b.State()).To(Equal(breaker.StateClosed))
			Expect(b.FailureCount()).To(Equal(uint32(0)))
			Expect(b.NextProbeAllowedAt()).To(BeZero())
		})
	})

	Context("NewDefault", func() {
		It("uses the spec's default per-endpoint thresholds", func() {
			b := breaker.NewDefault("/", logger)
			Expect(b.State()).To(Equal(breaker.StateClosed))
		})
	})
})
