package bulk_operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionIsLosslessAndOrdered(t *testing.T) {
	for n := 0; n <= 45; n++ {
		for _, size := range []int{1, 3, 7, 20, 50} {
			items := make([]int, n)
			for i := range items {
				items[i] = i
			}

			batches := Partition(items, size)

			var flat []int
			for i, b := range batches {
				assert.LessOrEqual(t, len(b), size)
				if i < len(batches)-1 {
					assert.Equal(t, size, len(b))
				}
				flat = append(flat, b...)
			}
			if n == 0 {
				assert.Empty(t, batches)
				continue
			}
			assert.Equal(t, items, flat, "n=%d size=%d", n, size)
			assert.Len(t, batches, (n+size-1)/size)
		}
	}
}

func TestPartitionBatchesDoNotAlias(t *testing.T) {
	batches := Partition([]int{1, 2, 3, 4}, 2)
	batches[0] = append(batches[0], 99)
	assert.Equal(t, []int{3, 4}, batches[1])
}

func TestPartitionClampsSize(t *testing.T) {
	assert.Len(t, Partition([]string{"a", "b"}, 0), 2)
}
