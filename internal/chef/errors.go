package chef

import "errors"

// Error kinds returned at collaborator boundaries. The orchestrator matches
// on these with errors.Is to choose degrade-vs-abort behavior: model and
// vector failures degrade inside the turn, not-found and validation errors
// surface to the caller.
var (
	ErrSessionNotFound   = errors.New("session does not exist")
	ErrRecipeNotFound    = errors.New("recipe not found")
	ErrValidation        = errors.New("invalid request")
	ErrModelUnavailable  = errors.New("model unavailable")
	ErrVectorUnavailable = errors.New("vector store unavailable")
	ErrFetchFailed       = errors.New("page fetch failed")
	ErrMailFailed        = errors.New("mail delivery failed")
)
