package runner

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadTailBuffer_UnderBudgetKeepsEverything(t *testing.T) {
	buf := NewHeadTailBuffer(32)
	fmt.Fprint(buf, "hello ")
	fmt.Fprint(buf, "world")

	assert.Equal(t, "hello world", string(buf.Bytes()))
	assert.Equal(t, 0, buf.Omitted())
}

func TestHeadTailBuffer_KeepsPrefixAndSuffixWhenOverBudget(t *testing.T) {
	buf := NewHeadTailBuffer(10)

	n, err := buf.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, 0, buf.Omitted())

	_, _ = buf.Write([]byte("ab"))
	assert.Equal(t, 2, buf.Omitted())
	assert.Equal(t, "01234789ab", string(buf.Bytes()))
}

func TestHeadTailBuffer_LargeChunkKeepsOnlyTailBudget(t *testing.T) {
	buf := NewHeadTailBuffer(4)
	_, _ = buf.Write([]byte("abcdefgh"))

	assert.Equal(t, "abgh", string(buf.Bytes()))
	assert.Equal(t, 4, buf.Omitted())
}

func TestHeadTailBuffer_ZeroBudgetDropsEverything(t *testing.T) {
	buf := NewHeadTailBuffer(0)
	n, err := buf.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Nil(t, buf.Bytes())
	assert.Equal(t, 3, buf.Omitted())
}

func TestHeadTailBuffer_ConcurrentWriters(t *testing.T) {
	buf := NewHeadTailBuffer(1 << 16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = buf.Write([]byte("x"))
			}
		}()
	}
	wg.Wait()
	assert.Len(t, buf.Bytes(), 800)
}
