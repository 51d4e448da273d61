package numbering

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterSource struct {
	values map[string]int64
}

func (c *counterSource) NextSequence(ctx context.Context, entryType string) (int64, error) {
	if c.values == nil {
		c.values = make(map[string]int64)
	}
	c.values[entryType]++
	return c.values[entryType], nil
}

func TestFormatAndParse(t *testing.T) {
	number := Format("ODY-", "SALE", 42)
	assert.Equal(t, "ODY-SALE-00000042", number)

	seq, err := Parse("SALE", number)
	require.NoError(t, err)
	assert.EqualValues(t, 42, seq)

	seq, err = Parse("PAYMENT_IN", "PAYMENT_IN-00000099")
	require.NoError(t, err)
	assert.EqualValues(t, 99, seq)

	_, err = Parse("PURCHASE", number)
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = Parse("SALE", "SALE_RETURN-00000001")
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = Parse("SALE", "SALE-12")
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = Parse("SALE", "SALE-0000000x")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestAssignerIsGaplessPerType(t *testing.T) {
	assigner := NewAssigner("HQ-")
	src := &counterSource{}
	ctx := context.Background()

	var previous int64
	for i := 0; i < 5; i++ {
		number, err := assigner.Next(ctx, src, "SALE")
		require.NoError(t, err)
		seq, err := Parse("SALE", number)
		require.NoError(t, err)
		assert.Equal(t, previous+1, seq)
		previous = seq
	}

	number, err := assigner.Next(ctx, src, "PURCHASE")
	require.NoError(t, err)
	assert.Equal(t, "HQ-PURCHASE-00000001", number)
}

func TestRetryOnConflictRunsOnce(t *testing.T) {
	errDup := errors.New("duplicate")
	isDup := func(err error) bool { return errors.Is(err, errDup) }

	calls := 0
	err := RetryOnConflict(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errDup
		}
		return nil
	}, isDup, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	retried := 0
	err = RetryOnConflict(context.Background(), func(context.Context) error {
		calls++
		return errDup
	}, isDup, func(error) { retried++ })
	assert.ErrorIs(t, err, errDup)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, retried)

	calls = 0
	err = RetryOnConflict(context.Background(), func(context.Context) error {
		calls++
		return errors.New("boom")
	}, isDup, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
