package access

import "errors"

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient role")
)

// Actor 是发起后台操作的调用方，auth.Caller 实现了该接口。
type Actor interface {
	IsAuthenticated() bool
	IsActive() bool
	HasRole(name string) bool
}

// Policy 判定调用方能否执行某类操作，返回 nil 表示放行。
type Policy func(actor Actor) error

// RequireRole 要求已登录、账号启用且拥有指定角色。
// superuser 与 releaseuser 相互独立，拥有其一不代表拥有另一个。
func RequireRole(role string) Policy {
	return func(actor Actor) error {
		if actor == nil || !actor.IsAuthenticated() {
			return ErrUnauthenticated
		}
		if !actor.IsActive() || !actor.HasRole(role) {
			return ErrForbidden
		}
		return nil
	}
}
