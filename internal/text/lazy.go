package text

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// lazy holds a value built on first use. Concurrent first callers share one
// construction; a failed construction is not stored, so the next call retries.
// The build ignores the first caller's cancellation so the waiters it serves
// are not failed by it.
type lazy[T any] struct {
	value atomic.Pointer[T]
	group singleflight.Group
	build func(context.Context) (T, error)
}

func (l *lazy[T]) get(ctx context.Context) (T, error) {
	if v := l.value.Load(); v != nil {
		return *v, nil
	}

	v, err, _ := l.group.Do("build", func() (any, error) {
		if v := l.value.Load(); v != nil {
			return *v, nil
		}
		v, err := l.build(context.WithoutCancel(ctx))
		if err != nil {
			return v, err
		}
		l.value.Store(&v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}
