// Package schools is the efterskole directory lookup used by profile and
// ride forms.
package schools

import (
	"context"
	"strings"

	"github.com/example/efterskole-rides/internal/models"
	"github.com/example/efterskole-rides/internal/storage"
)

const (
	// minQueryLen matches the autocomplete: it stays quiet until the user
	// has typed at least two characters.
	minQueryLen = 2
	resultLimit = 10
)

type Service struct {
	store storage.SchoolStore
}

func NewService(store storage.SchoolStore) *Service {
	return &Service{store: store}
}

func (s *Service) Search(ctx context.Context, query string) ([]models.School, error) {
	query = strings.TrimSpace(query)
	if len(query) < minQueryLen {
		return nil, nil
	}
	return s.store.SearchSchools(ctx, query, resultLimit)
}

func (s *Service) GetByName(ctx context.Context, name string) (*models.School, error) {
	return s.store.GetSchoolByName(ctx, name)
}
