package middleware

import (
	"github.com/gin-gonic/gin"

	"rxledger/internal/core/apperror"
	appctx "rxledger/internal/core/context"
	"rxledger/internal/core/id"
)

const HeaderCompanyID = "X-Company-ID"

// Company middleware resolves the tenant of the request from the
// X-Company-ID header. All API routes below it are company-scoped;
// handlers read the id from context and pass it to domain services
// explicitly.
func Company() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderCompanyID)
		if raw == "" {
			_ = c.Error(apperror.NewValidation("X-Company-ID header is required"))
			c.Abort()
			return
		}

		companyID, err := id.Parse(raw)
		if err != nil {
			_ = c.Error(apperror.NewValidation("invalid X-Company-ID header").
				WithDetail("value", raw))
			c.Abort()
			return
		}

		ctx := appctx.WithCompany(c.Request.Context(), &appctx.CompanyScope{CompanyID: companyID})
		c.Request = c.Request.WithContext(ctx)
		c.Set("company_id", companyID.String())

		c.Next()
	}
}
