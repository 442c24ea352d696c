package ports

import "github.com/vncsmyrnk/ballot/internal/core/domain"

type TokenService interface {
	Issue(caller domain.Caller) (string, error)
	Parse(token string) (domain.Caller, error)
}
