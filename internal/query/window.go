package query

import "iter"

type window struct {
	offset int
	limit  int
}

func parseWindow(args map[string]any, defaultLimit int) window {
	return window{
		offset: max(0, intArg(args, ArgOffset, 0)),
		limit:  max(0, intArg(args, ArgLimit, defaultLimit)),
	}
}

func intArg(args map[string]any, name string, def int) int {
	switch v := args[name].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// apply skips offset elements and yields at most limit. Errors pass through
// without counting.
func (w window) apply(seq iter.Seq2[any, error]) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		if w.limit == 0 {
			return
		}
		skipped, taken := 0, 0
		for v, err := range seq {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if skipped < w.offset {
				skipped++
				continue
			}
			if !yield(v, nil) {
				return
			}
			taken++
			if taken >= w.limit {
				return
			}
		}
	}
}

func filter(seq iter.Seq2[any, error], keep func(any) bool) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for v, err := range seq {
			if err == nil && !keep(v) {
				continue
			}
			if !yield(v, err) {
				return
			}
		}
	}
}

func fromSlice(items []any) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for _, v := range items {
			if !yield(v, nil) {
				return
			}
		}
	}
}
