package handler

import (
	"errors"
	"net/http"

	"github.com/edvin/mirrord/internal/api/response"
	"github.com/edvin/mirrord/internal/core"
	"github.com/edvin/mirrord/internal/source"
)

// writeServiceError maps core sentinel errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrBackendNotFound), errors.Is(err, core.ErrJobNotFound):
		response.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrNotConfigured):
		response.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, source.ErrUnsafeIdentifier):
		response.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		response.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
