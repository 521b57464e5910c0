package service

import (
	"fmt"

	"github.com/dukerupert/fellowship/internal/store"
)

const unknownUser = "Unknown user"

// nameTable maps user ids to display names.
type nameTable map[int64]string

func (t nameTable) name(id int64) string {
	if n, ok := t[id]; ok && n != "" {
		return n
	}
	return unknownUser
}

// loadNames builds a lookup table for ids with one users query.
func loadNames(users *store.UserStore, ids []int64) (nameTable, error) {
	seen := make(map[int64]struct{}, len(ids))
	uniq := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	list, err := users.ListByIDs(uniq)
	if err != nil {
		return nil, fmt.Errorf("load display names: %w", err)
	}
	t := make(nameTable, len(list))
	for _, u := range list {
		name := u.DisplayName
		if name == "" {
			name = u.Email
		}
		t[u.ID] = name
	}
	return t, nil
}
