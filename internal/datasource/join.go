package datasource

import (
	"context"
	"iter"
)

// Source is the read side every store implements.
type Source interface {
	AllInstancesOf(ctx context.Context, class string) iter.Seq2[any, error]
	FindByID(ctx context.Context, class, id string) (any, bool, error)
}

type joined []Source

// Join serves the instances of every source, in source order. Nil sources
// are skipped; FindByID answers from the first source that knows the id.
func Join(sources ...Source) Source {
	var out joined
	for _, s := range sources {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (j joined) AllInstancesOf(ctx context.Context, class string) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for _, s := range j {
			for v, err := range s.AllInstancesOf(ctx, class) {
				if !yield(v, err) {
					return
				}
				if err != nil {
					return
				}
			}
		}
	}
}

func (j joined) FindByID(ctx context.Context, class, id string) (any, bool, error) {
	for _, s := range j {
		v, ok, err := s.FindByID(ctx, class, id)
		if err != nil || ok {
			return v, ok, err
		}
	}
	return nil, false, nil
}
