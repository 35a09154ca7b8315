package dto

// CreateSiteRequest registers an external lecture site.
type CreateSiteRequest struct {
	Slug        string `json:"slug" validate:"required,alphanum|contains=-"`
	Name        string `json:"name" validate:"required"`
	URL         string `json:"url" validate:"required,url"`
	Description string `json:"description"`
	Shared      bool   `json:"shared"`
}

// SiteResolveResponse is the access-checked target the frontend embeds.
type SiteResolveResponse struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	URL  string `json:"url"`
}
