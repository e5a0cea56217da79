package infra

import (
	"context"
	"sort"
	"sync"

	"roomlink-api/marketplace/domain"
)

// MemoryStore implementa UserStore e ListingStore num processo só.
// Os valores devolvidos são cópias; alterá-los não afeta o store.
type MemoryStore struct {
	mu sync.RWMutex

	nextUserID    int64
	nextListingID int64
	users         map[int64]*domain.User
	usersByEmail  map[string]int64
	listings      map[int64]*domain.Listing
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[int64]*domain.User),
		usersByEmail: make(map[string]int64),
		listings:     make(map[int64]*domain.Listing),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByEmail[u.Email]; ok {
		return domain.ErrEmailTaken
	}
	s.nextUserID++
	u.ID = s.nextUserID
	cp := *u
	s.users[u.ID] = &cp
	s.usersByEmail[u.Email] = u.ID
	return nil
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *MemoryStore) FindUserByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) CreateListing(_ context.Context, l *domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextListingID++
	l.ID = s.nextListingID
	cp := *l
	s.listings[l.ID] = &cp
	return nil
}

func (s *MemoryStore) FindListing(_ context.Context, id int64) (*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *MemoryStore) SearchListings(_ context.Context, f domain.ListingFilter) ([]*domain.Listing, error) {
	f = f.Normalize()
	matched := s.collect(f.Matches)

	start := f.Offset()
	if start >= len(matched) {
		return []*domain.Listing{}, nil
	}
	end := len(matched)
	if f.Size < end-start {
		end = start + f.Size
	}
	return matched[start:end], nil
}

func (s *MemoryStore) ListingsByReporter(_ context.Context, reporterID int64) ([]*domain.Listing, error) {
	return s.collect(func(l *domain.Listing) bool { return l.ReporterID == reporterID }), nil
}

// collect devolve cópias dos anúncios aceitos, mais novos primeiro.
func (s *MemoryStore) collect(keep func(*domain.Listing) bool) []*domain.Listing {
	s.mu.RLock()
	out := make([]*domain.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		if keep(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

var (
	_ domain.UserStore    = (*MemoryStore)(nil)
	_ domain.ListingStore = (*MemoryStore)(nil)
	_ domain.UserStore    = (*GormStore)(nil)
	_ domain.ListingStore = (*GormStore)(nil)
	_ domain.BlobStore    = (*DiskBlobStore)(nil)
)
