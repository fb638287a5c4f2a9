package contacts

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/notewell/crmbridge/internal/crm"
	"github.com/notewell/crmbridge/internal/stores/credential"
	"github.com/notewell/crmbridge/pkg/sdk"
)

// SearchContacts handles POST requests to search the user's provider
func SearchContacts(c *gin.Context) {
	var req sdk.SearchContactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not parse request body", err.Error()).AsGinResponse())
		return
	}

	records, err := GetService().Search(c.Request.Context(), req.UserID, crm.Provider(req.Provider), req.Query)
	if err != nil {
		respondError(c, "Failed to search contacts", err)
		return
	}

	out := make([]sdk.Contact, 0, len(records))
	for i := range records {
		out = append(out, toSDKContact(&records[i]))
	}

	c.JSON(sdk.NewSuccessResponse("Contacts retrieved successfully", out).AsGinResponse())
}

// GetContact handles GET requests to fetch one contact by ID
func GetContact(c *gin.Context) {
	userID := c.Query("user_id")
	provider := c.Query("provider")
	if userID == "" || provider == "" {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "user_id and provider query parameters are required", nil).AsGinResponse())
		return
	}

	record, err := GetService().Get(c.Request.Context(), userID, crm.Provider(provider), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get contact", err)
		return
	}

	c.JSON(sdk.NewSuccessResponse("Contact retrieved successfully", toSDKContact(record)).AsGinResponse())
}

// UpdateContact handles PATCH requests applying a direct field map
func UpdateContact(c *gin.Context) {
	var req sdk.UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not parse request body", err.Error()).AsGinResponse())
		return
	}

	record, err := GetService().Update(c.Request.Context(), req.UserID, crm.Provider(req.Provider), c.Param("id"), req.Updates)
	if err != nil {
		respondError(c, "Failed to update contact", err)
		return
	}

	c.JSON(sdk.NewSuccessResponse("Contact updated successfully", toSDKContact(record)).AsGinResponse())
}

// ReconcileSuggestions handles POST requests diffing proposed
// suggestions against the live record
func ReconcileSuggestions(c *gin.Context) {
	var req sdk.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not parse request body", err.Error()).AsGinResponse())
		return
	}

	merged, err := GetService().Reconcile(c.Request.Context(), req.UserID, crm.Provider(req.Provider), c.Param("id"), fromSDKSuggestions(req.Suggestions))
	if err != nil {
		respondError(c, "Failed to reconcile suggestions", err)
		return
	}

	c.JSON(sdk.NewSuccessResponse("Suggestions reconciled successfully", toSDKSuggestions(merged)).AsGinResponse())
}

// ApplySuggestions handles POST requests committing reviewed suggestions
func ApplySuggestions(c *gin.Context) {
	var req sdk.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not parse request body", err.Error()).AsGinResponse())
		return
	}

	record, err := GetService().Apply(c.Request.Context(), req.UserID, crm.Provider(req.Provider), c.Param("id"), fromSDKSuggestions(req.Suggestions))
	if err != nil {
		respondError(c, "Failed to apply suggestions", err)
		return
	}

	// A nil record with no error means nothing was marked for
	// application, which is a success
	resp := sdk.ApplyResponse{}
	if record != nil {
		resp.Updated = true
		contact := toSDKContact(record)
		resp.Contact = &contact
	}

	c.JSON(sdk.NewSuccessResponse("Suggestions applied successfully", resp).AsGinResponse())
}

// SuggestFromNotes handles POST requests generating suggestions from
// meeting notes
func SuggestFromNotes(c *gin.Context) {
	var req sdk.SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not parse request body", err.Error()).AsGinResponse())
		return
	}

	merged, err := GetService().SuggestFromNotes(c.Request.Context(), req.UserID, crm.Provider(req.Provider), c.Param("id"), req.Notes)
	if err != nil {
		respondError(c, "Failed to generate suggestions", err)
		return
	}

	c.JSON(sdk.NewSuccessResponse("Suggestions generated successfully", toSDKSuggestions(merged)).AsGinResponse())
}

// respondError maps the error taxonomy onto HTTP statuses so callers
// can tell "not found" and "bad provider" apart from provider-side
// failures
func respondError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, crm.ErrNotFound), errors.Is(err, credential.ErrNotFound):
		c.JSON(sdk.NewErrorResponse(http.StatusNotFound, message, err.Error()).AsGinResponse())
	case errors.Is(err, crm.ErrUnsupportedProvider), errors.Is(err, crm.ErrInvalidProvider):
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, message, err.Error()).AsGinResponse())
	case errors.Is(err, crm.ErrNoRefreshToken):
		c.JSON(sdk.NewErrorResponse(http.StatusUnauthorized, message, err.Error()).AsGinResponse())
	default:
		var refreshErr *crm.TokenRefreshError
		if errors.As(err, &refreshErr) {
			c.JSON(sdk.NewErrorResponse(http.StatusUnauthorized, message, err.Error()).AsGinResponse())
			return
		}
		c.JSON(sdk.NewErrorResponse(http.StatusInternalServerError, message, err.Error()).AsGinResponse())
	}
}

// Helper method to convert a canonical record to its sdk shape
func toSDKContact(record *crm.ContactRecord) sdk.Contact {
	return sdk.Contact{
		ID:          record.ID,
		Fields:      record.Fields,
		DisplayName: record.DisplayName(),
	}
}

// Helper method to convert sdk suggestions to internal field updates
func fromSDKSuggestions(suggestions []sdk.Suggestion) []crm.FieldUpdate {
	out := make([]crm.FieldUpdate, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, crm.FieldUpdate{
			Field:        s.Field,
			Label:        s.Label,
			CurrentValue: s.CurrentValue,
			NewValue:     s.NewValue,
			Context:      s.Context,
			Apply:        s.Apply,
			HasChange:    s.HasChange,
		})
	}
	return out
}

// Helper method to convert internal field updates to sdk suggestions
func toSDKSuggestions(updates []crm.FieldUpdate) []sdk.Suggestion {
	out := make([]sdk.Suggestion, 0, len(updates))
	for _, u := range updates {
		out = append(out, sdk.Suggestion{
			Field:        u.Field,
			Label:        u.Label,
			CurrentValue: u.CurrentValue,
			NewValue:     u.NewValue,
			Context:      u.Context,
			Apply:        u.Apply,
			HasChange:    u.HasChange,
		})
	}
	return out
}
