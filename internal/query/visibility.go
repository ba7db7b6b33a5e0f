package query

import "context"

// Visibility decides whether the caller may see an instance.
type Visibility interface {
	IsVisible(ctx context.Context, instance any) bool
}

type VisibilityFunc func(ctx context.Context, instance any) bool

func (f VisibilityFunc) IsVisible(ctx context.Context, instance any) bool { return f(ctx, instance) }

// Permission names an action checked against AccessControlled instances.
type Permission string

const Read Permission = "read"

// AccessControlled instances decide themselves who may see them.
type AccessControlled interface {
	HasPermission(ctx context.Context, p Permission) bool
}

var (
	// AllowAll shows every non-nil instance.
	AllowAll Visibility = VisibilityFunc(func(_ context.Context, instance any) bool {
		return instance != nil
	})

	// ReadPermission hides AccessControlled instances without Read permission.
	ReadPermission Visibility = VisibilityFunc(func(ctx context.Context, instance any) bool {
		if instance == nil {
			return false
		}
		if ac, ok := instance.(AccessControlled); ok {
			return ac.HasPermission(ctx, Read)
		}
		return true
	})
)
