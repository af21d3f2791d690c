package api

import (
	"errors"
	"net/http"

	"github.com/norris81b/webCamCtrl/internal/control"
)

// handleLegacy serves /camctrl?json={"command":"NAME[::ARGS]"} for the
// browser control page. The document may also arrive as a POST form value.
func (s *Server) handleLegacy(w http.ResponseWriter, r *http.Request) {
	raw := r.FormValue("json")
	if raw == "" {
		badRequest.write(w, "json parameter is required")
		return
	}

	result, err := s.control.HandleJSON(r.Context(), raw)
	if err != nil {
		if errors.Is(err, control.ErrInvalidRequest) {
			badRequest.write(w, err.Error())
			return
		}
		internal.write(w, "failed to handle command")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
