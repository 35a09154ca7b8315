package dto

// UploadMaterialRequest carries the multipart fields accompanying a PDF
// upload. SocketID routes pdf-progress events back to the uploading browser
// tab and may be empty when the client did not open a realtime connection.
type UploadMaterialRequest struct {
	Title    string `form:"title"`
	SocketID string `form:"socket_id"`
}

// UpdateMaterialRequest toggles library sharing.
type UpdateMaterialRequest struct {
	Shared *bool `json:"shared" validate:"required"`
}

// MaterialUploadAccepted is returned when a conversion has been enqueued.
type MaterialUploadAccepted struct {
	MaterialID string `json:"material_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
}
