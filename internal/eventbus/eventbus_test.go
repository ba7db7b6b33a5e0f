package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type built struct{ types int }
type failed struct{ err error }

func TestDispatchByType(t *testing.T) {
	b := New()
	var got []string
	off1 := On(b, func(_ context.Context, e built) { got = append(got, "first") })
	off2 := On(b, func(_ context.Context, e built) { got = append(got, "second") })
	On(b, func(_ context.Context, e failed) { got = append(got, "failed") })

	Emit(context.Background(), b, built{types: 3})
	require.Equal(t, []string{"first", "second"}, got)

	got = nil
	off1()
	off1()
	Emit(context.Background(), b, built{})
	require.Equal(t, []string{"second"}, got)

	got = nil
	off2()
	Emit(context.Background(), b, built{})
	Emit(context.Background(), b, failed{})
	require.Equal(t, []string{"failed"}, got)
}

func TestProcessBus(t *testing.T) {
	Use(nil)
	var n int
	off := Subscribe(func(_ context.Context, e built) { n += e.types })
	Publish(context.Background(), built{types: 1})
	off()
	require.Zero(t, n)

	Use(New())
	t.Cleanup(func() { Use(nil) })
	off = Subscribe(func(_ context.Context, e built) { n += e.types })
	Publish(context.Background(), built{types: 2})
	Publish(context.Background(), &built{types: 5})
	off()
	Publish(context.Background(), built{types: 4})
	require.Equal(t, 2, n)
}
