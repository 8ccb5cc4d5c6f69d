package handlers

import (
	"net/http"

	"driverdesk/internal/domain"
	"driverdesk/internal/http/middleware"
	"driverdesk/internal/services"

	"github.com/gin-gonic/gin"
)

type issueQRRequest struct {
	Sum       int64  `json:"sum"`
	Recipient string `json:"recipient"`
}

func (a *API) docs(c *gin.Context) services.DocsService {
	return services.DocsService{Core: a.Core, DriverName: a.DriverName, RequestID: middleware.GetRequestID(c)}
}

// Manifest returns the current trip's seat manifest (inline PDF).
func (a *API) Manifest(c *gin.Context) {
	pdfBytes, filename, err := a.docs(c).GenerateManifest()
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

// Receipt returns a receipt for one ledger line of the current trip.
func (a *API) Receipt(c *gin.Context) {
	pdfBytes, filename, err := a.docs(c).GenerateReceipt(c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

// IssueQR signs a demo payment payload, standing in for the passenger's app.
func (a *API) IssueQR(c *gin.Context) {
	var req issueQRRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	recipient := req.Recipient
	if recipient == "" {
		recipient = a.DriverName
	}
	token, err := a.Issuer.Issue(req.Sum, recipient)
	if err != nil {
		RespondDomainError(c, domain.ValidationError{Field: "sum", Msg: err.Error(), Err: err})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "sum": req.Sum, "recipient": recipient})
}
