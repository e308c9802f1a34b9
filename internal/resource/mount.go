package resource

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"zamanyonet-admin/internal/audit"
)

// Backend selects where gateways keep their documents. A nil DB means the
// in-process store, with audit entries going to AuditRepo.
type Backend struct {
	Audit     *audit.Service
	AuditRepo audit.Repository
	DB        *sql.DB
}

func NewGateway[T any](b Backend, def *Definition[T]) (Gateway[T], error) {
	if err := def.Check(); err != nil {
		return nil, err
	}
	if b.DB != nil {
		return NewPostgresGateway(def, b.Audit, b.DB), nil
	}
	return NewMemoryGateway(def, b.Audit, b.AuditRepo), nil
}

// Mount builds the gateway for def and registers its routes on r.
func Mount[T any](r gin.IRouter, b Backend, def *Definition[T], mw ...gin.HandlerFunc) (Gateway[T], error) {
	gw, err := NewGateway(b, def)
	if err != nil {
		return nil, err
	}
	NewHandler(def, gw).Register(r, mw...)
	return gw, nil
}
