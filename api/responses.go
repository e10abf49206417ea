package api

// CheckResponse is the response for a permission check.
type CheckResponse struct {
	UserID     string `json:"user_id" description:"User ID"`
	Permission string `json:"permission" description:"Permission key"`
	Allowed    bool   `json:"allowed" description:"Whether the user holds the permission"`
}

// ListResponse wraps a list of items with pagination metadata.
type ListResponse[T any] struct {
	Items  []T   `json:"items" description:"List of items"`
	Total  int64 `json:"total" description:"Total count"`
	Limit  int   `json:"limit" description:"Page size"`
	Offset int   `json:"offset" description:"Page offset"`
}

// BatchCheckResponse is the response for a batch permission check.
type BatchCheckResponse struct {
	Results []CheckResponse `json:"results" description:"Per-permission results"`
}

// PurgeResponse reports how many expired overrides were removed.
type PurgeResponse struct {
	Purged int64 `json:"purged" description:"Number of overrides deleted"`
}
