package dto

// ── Terminal input ────────────────────────────────────────────────────────────

type CategoryRequest struct {
	Name        string  `validate:"required,min=2,max=100"`
	Description *string `validate:"omitempty,max=500"`
	// AcknowledgeSimilar lets a near-duplicate name through after the user saw the warning.
	AcknowledgeSimilar bool
}

// ── Backend wire format ───────────────────────────────────────────────────────

type CategoryBody struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type CategoryResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  *string `json:"description,omitempty"`
	ProductCount int     `json:"product_count"`
}
