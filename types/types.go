package types

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage represents a single comment received from the live chat.
type ChatMessage struct {
	Username string    `json:"username"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
	UUID     uuid.UUID `json:"uuid"`
}

// Intent is the classifier's reading of a chat comment.
type Intent string

const (
	// IntentProductRequest means the viewer asked to see a specific product.
	IntentProductRequest Intent = "product_request"
	// IntentOther means the comment is not about a product.
	IntentOther Intent = "other"
	// IntentError means classification failed; callers treat it as a no-op.
	IntentError Intent = "error"
)

// Verdict is the structured result of classifying one comment.
type Verdict struct {
	Intent      Intent `json:"intent"`
	ProductName string `json:"product_name"`
}

// Product is one sellable item in the session catalog. Name is the identity;
// MediaFile is the video played when the product is requested; Description
// holds comma-separated keywords used by the cheap classifier filter.
type Product struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	MediaFile   string `db:"media_file" json:"media_file"`
	Description string `db:"description" json:"description"`
}

// LiveStats is the observable state of a running session.
type LiveStats struct {
	Running           bool     `json:"running"`
	CommentsProcessed int64    `json:"comments_processed"`
	ScenesSwitched    int64    `json:"scenes_switched"`
	Errors            int64    `json:"errors"`
	CurrentProduct    string   `json:"current_product"`
	Queue             []string `json:"queue"`
}
