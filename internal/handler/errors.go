package handler

import (
	"errors"
	"net/http"

	"freshkeep-api/internal/middleware"
	"freshkeep-api/internal/model"
	"freshkeep-api/internal/service"
	"freshkeep-api/pkg/apierror"
	"freshkeep-api/pkg/response"
)

// serviceError maps service-layer errors onto the API error vocabulary.
func serviceError(w http.ResponseWriter, err error) {
	var validation *service.ValidationError
	var store *service.StoreError

	switch {
	case errors.As(err, &validation):
		response.Error(w, apierror.ValidationError(validation.Msg))
	case errors.Is(err, service.ErrNotFound):
		response.Error(w, apierror.NotFound(""))
	case errors.Is(err, service.ErrNotUndoable):
		response.Error(w, apierror.NotUndoable(""))
	case errors.As(err, &store):
		response.Error(w, apierror.ServiceUnavailable("storage backend unavailable"))
	default:
		response.Error(w, err)
	}
}

// sessionFromRequest pulls the resolved session out of the request
// context, writing a 401 when the middleware did not attach one.
func sessionFromRequest(w http.ResponseWriter, r *http.Request) (model.Session, bool) {
	sess, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return model.Session{}, false
	}
	return sess, true
}
