package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHookRegistry_RunsInOrderAndStops(t *testing.T) {
	r := NewHookRegistry[*[]string]()
	boom := errors.New("boom")

	r.On(BeforeSave, func(ctx context.Context, log *[]string) error {
		*log = append(*log, "first")
		return nil
	})
	r.On(BeforeSave, func(ctx context.Context, log *[]string) error {
		*log = append(*log, "second")
		return boom
	})
	r.On(BeforeSave, func(ctx context.Context, log *[]string) error {
		*log = append(*log, "third")
		return nil
	})

	var log []string
	err := r.Run(context.Background(), BeforeSave, &log)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first", "second"}, log)
	assert.True(t, r.Has(BeforeSave))
	assert.False(t, r.Has(AfterConfirm))
	assert.NoError(t, r.Run(context.Background(), AfterConfirm, &log))
}
