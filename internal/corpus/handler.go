package corpus

import (
	"encoding/json"
	"net/http"
)

func (s *Store) VersionsHandler(w http.ResponseWriter, r *http.Request) {
	versions, err := s.Versions(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if versions == nil {
		versions = []VersionStats{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"versions": versions})
}
