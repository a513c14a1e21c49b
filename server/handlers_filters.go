package server

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/fractalo/chat-curator/filter"
)

const maxImportBytes = 4 << 20

// HandleGroups serves the group record: GET returns it, PUT replaces it as a
// whole. List recompilation happens downstream of the storage write.
func (h *Handlers) HandleGroups(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		groups, err := filter.GetGroups(r.Context(), h.store)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(groups)
	case http.MethodPut:
		var groups filter.Groups
		if err := json.NewDecoder(r.Body).Decode(&groups); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		for id, g := range groups {
			if g.ID == "" {
				g.ID = id
				groups[id] = g
			}
			if g.ID != id {
				http.Error(w, "group id mismatch", http.StatusBadRequest)
				return
			}
		}
		if err := filter.SetGroups(r.Context(), h.store, groups); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleGroupsDispatcher routes /filters/groups/{id} and
// /filters/groups/{id}/{type}.
func (h *Handlers) HandleGroupsDispatcher(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/filters/groups/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	switch len(segments) {
	case 1:
		if segments[0] == "" {
			http.NotFound(w, r)
			return
		}
		h.handleGroup(w, r, segments[0])
	case 2:
		typ, ok := listType(segments[1])
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.handleList(w, r, segments[0], typ)
	default:
		http.NotFound(w, r)
	}
}

func listType(s string) (filter.Type, bool) {
	for _, typ := range filter.Types {
		if string(typ) == s {
			return typ, true
		}
	}
	return "", false
}

func (h *Handlers) handleGroup(w http.ResponseWriter, r *http.Request, groupID string) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	groups, err := filter.GetGroups(r.Context(), h.store)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if _, ok := groups[groupID]; !ok {
		http.Error(w, "group not found", http.StatusNotFound)
		return
	}
	delete(groups, groupID)
	if err := filter.SetGroups(r.Context(), h.store, groups); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := filter.RemoveLists(r.Context(), h.store, groupID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) handleList(w http.ResponseWriter, r *http.Request, groupID string, typ filter.Type) {
	switch r.Method {
	case http.MethodGet:
		list, err := filter.GetList(r.Context(), h.store, groupID, typ)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	case http.MethodPut:
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		if !json.Valid(raw) {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		// Tolerant decode: entries of a foreign shape are dropped, matching
		// how the compiler treats stored lists.
		list := filter.DecodeList(raw, typ)
		if err := filter.SetList(r.Context(), h.store, groupID, typ, list); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := h.refreshFilterCount(r, groupID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// refreshFilterCount recomputes a group's filter count after a list write.
func (h *Handlers) refreshFilterCount(r *http.Request, groupID string) error {
	groups, err := filter.GetGroups(r.Context(), h.store)
	if err != nil {
		return err
	}
	group, ok := groups[groupID]
	if !ok {
		return nil
	}
	count := 0
	for _, typ := range filter.Types {
		list, err := filter.GetList(r.Context(), h.store, groupID, typ)
		if err != nil {
			return err
		}
		count += len(list)
	}
	if group.FilterCount == count {
		return nil
	}
	group.FilterCount = count
	groups[groupID] = group
	return filter.SetGroups(r.Context(), h.store, groups)
}

// HandleExport downloads all filter groups with their filters flattened.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	record, err := filter.GetGroups(r.Context(), h.store)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	groups := make([]filter.Group, 0, len(record))
	for _, g := range record {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })

	exported, err := filter.Export(r.Context(), h.store, groups)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="chat-filter-groups.json"`)
	_ = json.NewEncoder(w).Encode(exported)
}

// HandleImport validates an uploaded exported-groups document and merges the
// surviving groups into storage alongside the existing ones.
func (h *Handlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	imported, err := filter.ParseImportedGroups(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	groups, err := filter.GetGroups(r.Context(), h.store)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	for _, g := range imported {
		id := g.ID
		if _, exists := groups[id]; exists {
			id = uuid.New().String()
		}

		lists := map[filter.Type]filter.List{}
		for _, typ := range filter.Types {
			lists[typ] = filter.List{}
		}
		for _, f := range g.Filters {
			lists[f.FilterType()][f.Common().ID] = f
		}
		for typ, list := range lists {
			if err := filter.SetList(r.Context(), h.store, id, typ, list); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}

		groups[id] = filter.Group{
			ID:          id,
			Name:        g.Name,
			ModifiedAt:  g.ModifiedAt,
			FilterCount: len(g.Filters),
			IsActive:    g.IsActive,
			IsGlobal:    g.IsGlobal,
			ChannelIDs:  g.ChannelIDs,
		}
	}

	if err := filter.SetGroups(r.Context(), h.store, groups); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"imported": len(imported)})
}
