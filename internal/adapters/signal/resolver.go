package signal

import (
	"github.com/gin-gonic/gin"

	"github.com/dkeye/meetsync/internal/domain"
)

// SessionContext is what a connection needs to attach: the session it joins
// and the user behind it.
type SessionContext struct {
	ID         domain.SessionID
	User       domain.Identity
	Credential domain.Credential
}

// SessionResolver derives the session context from the upgrade request.
// Failing to resolve one rejects the connection.
type SessionResolver interface {
	Resolve(c *gin.Context) (SessionContext, error)
}

type ResolverFunc func(c *gin.Context) (SessionContext, error)

func (f ResolverFunc) Resolve(c *gin.Context) (SessionContext, error) { return f(c) }
