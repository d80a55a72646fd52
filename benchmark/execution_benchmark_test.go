package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/quy267/spring-drools-integration-sub002/engine"
	"github.com/quy267/spring-drools-integration-sub002/internal/config"
)

type DiscountFact struct {
	Amount   int
	Discount int
}

func discountStatement(rule string, threshold, discount int) string {
	return fmt.Sprintf(`rule %s "Discount rule" salience 10 {
		when
			DiscountFact.Amount > %d
		then
			DiscountFact.Discount = %d;
			Retract("%s");
	}`, rule, threshold, discount, rule)
}

func benchConfig() *config.Config {
	cfg := config.Default()
	cfg.Engine.FactName = "DiscountFact"
	return cfg
}

// BenchmarkExecuteSingle benchmarks repeated single executions against a
// warm artifact cache and session pool.
func BenchmarkExecuteSingle(b *testing.B) {
	grule := engine.NewOrchestrator(benchConfig(), nil)
	defer grule.Close()

	if err := grule.AddRule(context.Background(), "Discount", discountStatement("Discount", 100, 10)); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		fact := &DiscountFact{Amount: 150}
		if _, err := grule.ExecuteSingle(context.Background(), "Discount", fact); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkBatchVsChunked compares one batch cycle against chunked cycles
// over the same input.
func BenchmarkBatchVsChunked(b *testing.B) {
	grule := engine.NewOrchestrator(benchConfig(), nil)
	defer grule.Close()

	if err := grule.AddRule(context.Background(), "Discount", discountStatement("Discount", 100, 10)); err != nil {
		b.Fatal(err)
	}

	makeFacts := func(n int) []any {
		facts := make([]any, n)
		for i := range facts {
			facts[i] = &DiscountFact{Amount: 50 + i*10}
		}
		return facts
	}

	for _, n := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("Batch%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := grule.ExecuteBatch(context.Background(), "Discount", makeFacts(n)); err != nil {
					b.Fatal(err)
				}
			}
		})
		b.Run(fmt.Sprintf("Chunked%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := grule.ExecuteChunked(context.Background(), "Discount", makeFacts(n), 50); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkPartitions benchmarks concurrent execution across partition
// counts.
func BenchmarkPartitions(b *testing.B) {
	for _, partitions := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("Partitions%d", partitions), func(b *testing.B) {
			cfg := benchConfig()
			cfg.Engine.Partitions = partitions
			grule := engine.NewPartitionOrchestrator(cfg, nil)
			defer grule.Close()

			for i := 0; i < 100; i++ {
				rule := fmt.Sprintf("Rule%d", i)
				if err := grule.AddRule(context.Background(), rule, discountStatement(rule, i*10, i)); err != nil {
					b.Fatal(err)
				}
			}

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					rule := fmt.Sprintf("Rule%d", i%100)
					fact := &DiscountFact{Amount: (i%100)*10 + 50}
					if _, err := grule.ExecuteSingle(context.Background(), rule, fact); err != nil {
						b.Fatal(err)
					}
					i++
				}
			})
		})
	}
}

// BenchmarkPoolSizes benchmarks contention on one rule unit across session
// pool sizes.
func BenchmarkPoolSizes(b *testing.B) {
	for _, size := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("MaxPooled%d", size), func(b *testing.B) {
			cfg := benchConfig()
			cfg.Pool.MaxPooled = size
			grule := engine.NewOrchestrator(cfg, nil)
			defer grule.Close()

			if err := grule.AddRule(context.Background(), "Discount", discountStatement("Discount", 100, 10)); err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					fact := &DiscountFact{Amount: 150}
					if _, err := grule.ExecuteSingle(context.Background(), "Discount", fact); err != nil {
						b.Fatal(err)
					}
				}
			})
		})
	}
}

// BenchmarkRuleLoading benchmarks repeated compilation of fresh rule units.
func BenchmarkRuleLoading(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		grule := engine.NewOrchestrator(benchConfig(), nil)
		for j := 0; j < 50; j++ {
			rule := fmt.Sprintf("Rule%d_%d", i, j)
			if err := grule.AddRule(context.Background(), rule, discountStatement(rule, j*10, j)); err != nil {
				b.Fatal(err)
			}
		}
		grule.Close()
	}
}

// BenchmarkConcurrentMixed benchmarks concurrent execution over many rule
// units with a randomised access pattern.
func BenchmarkConcurrentMixed(b *testing.B) {
	cfg := benchConfig()
	cfg.Engine.Partitions = 4
	grule := engine.NewPartitionOrchestrator(cfg, nil)
	defer grule.Close()

	for i := 0; i < 200; i++ {
		rule := fmt.Sprintf("Rule%d", i)
		if err := grule.AddRule(context.Background(), rule, discountStatement(rule, i*5, i%100)); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		localRand := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			rule := fmt.Sprintf("Rule%d", localRand.Intn(200))
			fact := &DiscountFact{Amount: localRand.Intn(1000) + 100}
			if _, err := grule.ExecuteSingle(context.Background(), rule, fact); err != nil {
				b.Fatal(err)
			}
		}
	})
}
