package pricing

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHolder(t *testing.T) {
	hld, err := NewHolder(Config{Factor: 1.5})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, hld.Factor(), 0)
	assert.Equal(t, Config{Factor: 1.5}, hld.Snapshot())

	for _, factor := range []float64{0, -1, -0.5} {
		hld, err = NewHolder(Config{Factor: factor})
		require.NoError(t, err, "factor %v", factor)
		assert.InDelta(t, factor, hld.Factor(), 0)
	}

	for _, factor := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err = NewHolder(Config{Factor: factor})
		require.ErrorIs(t, err, ErrInvalidFactor, "factor %v", factor)
	}
}

func TestReplace(t *testing.T) {
	requirer := require.New(t)
	asserter := assert.New(t)

	hld, err := NewHolder(Config{Factor: DefaultFactor})
	requirer.NoError(err)

	t.Run("valid factor is swapped in", func(_ *testing.T) {
		requirer.NoError(hld.Replace(Config{Factor: 2.25}))
		asserter.InDelta(2.25, hld.Factor(), 0)
	})

	t.Run("zero factor is accepted", func(_ *testing.T) {
		requirer.NoError(hld.Replace(Config{Factor: 0}))
		asserter.InDelta(0, hld.Factor(), 0)
		requirer.NoError(hld.Replace(Config{Factor: 2.25}))
	})

	t.Run("invalid factor keeps the previous snapshot", func(_ *testing.T) {
		err = hld.Replace(Config{Factor: math.Inf(-1)})
		requirer.ErrorIs(err, ErrInvalidFactor)
		asserter.InDelta(2.25, hld.Factor(), 0)
	})
}

func TestConcurrentReadsDuringReplace(t *testing.T) {
	hld, err := NewHolder(Config{Factor: 1})
	require.NoError(t, err)

	valid := map[float64]struct{}{1: {}, 2: {}, 3: {}}
	wg := sync.WaitGroup{}
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				_, ok := valid[hld.Factor()]
				assert.True(t, ok)
			}
		}()
	}

	for i := range 300 {
		_ = hld.Replace(Config{Factor: float64(i%3 + 1)})
	}
	wg.Wait()
}
