package postprocess

import (
	"math/rand"
	"strconv"
	"testing"
)

func BenchmarkApplyGreedyNMS(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		results := randomResults(rand.New(rand.NewSource(int64(n))), n)
		for _, classAware := range []bool{false, true} {
			name := strconv.Itoa(n)
			if classAware {
				name += "/class_aware"
			}
			config := &NMSConfig{IoUThreshold: 0.4, ClassAware: classAware}
			b.Run(name, func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					_ = ApplyGreedyNMS(results, config)
				}
			})
		}
	}
}
