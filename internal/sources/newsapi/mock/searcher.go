package mock

import (
	"context"
	"sync"

	"github.com/bakkerme/newsfeed/internal/sources/newsapi"
)

// Page is a canned response keyed by query text and offset.
type Page struct {
	Response newsapi.SearchResponse
	Err      error
}

// Searcher answers from canned pages and records every request.
// Unknown (text, offset) pairs return an empty page.
type Searcher struct {
	Pages map[string]map[int]Page

	mu       sync.Mutex
	requests []newsapi.SearchRequest
}

// Add registers a canned page for text at offset.
func (s *Searcher) Add(text string, offset int, page Page) *Searcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Pages == nil {
		s.Pages = make(map[string]map[int]Page)
	}
	if s.Pages[text] == nil {
		s.Pages[text] = make(map[int]Page)
	}
	s.Pages[text][offset] = page
	return s
}

func (s *Searcher) Search(ctx context.Context, req newsapi.SearchRequest) (newsapi.SearchResponse, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	page, ok := s.Pages[req.Text][req.Offset]
	if !ok {
		return newsapi.SearchResponse{}, nil
	}
	return page.Response, page.Err
}

// Requests returns a copy of the requests seen so far.
func (s *Searcher) Requests() []newsapi.SearchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]newsapi.SearchRequest(nil), s.requests...)
}
