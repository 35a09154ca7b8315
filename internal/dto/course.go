package dto

// CreateCourseRequest describes course creation by an instructor.
type CreateCourseRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	SiteIDs     []string `json:"site_ids"`
	MaterialIDs []string `json:"material_ids"`
}

// UpdateCourseRequest updates course metadata.
type UpdateCourseRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

// LinkMaterialRequest links a library material to a course.
type LinkMaterialRequest struct {
	MaterialID string `json:"material_id" validate:"required"`
}

// LinkSiteRequest links a lecture site to a course.
type LinkSiteRequest struct {
	SiteID string `json:"site_id" validate:"required"`
}
