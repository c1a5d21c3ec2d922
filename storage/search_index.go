package storage

import "sort"

// SessionMessageMatch is a MessageMatch tagged with the session it came
// from, for cross-session search results.
type SessionMessageMatch struct {
	SessionID   string
	SessionName string
	MessageMatch
}

// SearchIndex runs fuzzy search over every stored session.
type SearchIndex struct {
	storage *SessionStorage
}

func NewSearchIndex(storage *SessionStorage) *SearchIndex {
	return &SearchIndex{storage: storage}
}

// SearchAllSessions loads each session, searches its messages, and returns
// the combined matches ranked best first. Sessions that fail to load are
// skipped rather than aborting the whole search.
func (si *SearchIndex) SearchAllSessions(query string) ([]SessionMessageMatch, error) {
	if query == "" {
		return []SessionMessageMatch{}, nil
	}

	metas, err := si.storage.List()
	if err != nil {
		return nil, err
	}

	var out []SessionMessageMatch
	for _, meta := range metas {
		sess, err := si.storage.Load(meta.ID)
		if err != nil {
			continue
		}
		for _, m := range SearchMessages(sess.Messages, query) {
			out = append(out, SessionMessageMatch{
				SessionID:    sess.ID,
				SessionName:  sess.Name,
				MessageMatch: m,
			})
		}
	}

	// Per-session results arrive ranked; re-rank across sessions.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}
