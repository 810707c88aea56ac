package context

import (
	"context"

	"github.com/google/uuid"
)

// CompanyScope identifies the tenant a request operates on. It is set by
// HTTP middleware from the X-Company-ID header and read by handlers;
// domain services always take the company id explicitly.
type CompanyScope struct {
	CompanyID uuid.UUID
}

type companyScopeKey struct{}

// WithCompany adds CompanyScope to context.
func WithCompany(ctx context.Context, scope *CompanyScope) context.Context {
	return context.WithValue(ctx, companyScopeKey{}, scope)
}

// GetCompany returns CompanyScope from context, or nil.
func GetCompany(ctx context.Context) *CompanyScope {
	if v, ok := ctx.Value(companyScopeKey{}).(*CompanyScope); ok {
		return v
	}
	return nil
}

// GetCompanyID returns the company id from context or uuid.Nil.
func GetCompanyID(ctx context.Context) uuid.UUID {
	if s := GetCompany(ctx); s != nil {
		return s.CompanyID
	}
	return uuid.Nil
}
