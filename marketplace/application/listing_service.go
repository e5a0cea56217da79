package application

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"roomlink-api/marketplace/domain"
)

var contactNumberRe = regexp.MustCompile(`^\d{8,12}$`)

const maxDescriptionLen = 1000

type ListingService struct {
	Listings domain.ListingStore
	Users    domain.UserStore
	// AutoApprove publica novos anúncios direto como APPROVED; senão ficam PENDING.
	AutoApprove bool
	Now         func() time.Time
}

type CreateListingInput struct {
	Area          string
	Rent          float64
	Deposit       float64
	RoomType      string
	Description   string
	ImageURL      string
	ContactNumber string
	Latitude      *float64
	Longitude     *float64
}

func (in CreateListingInput) validate() (domain.RoomType, error) {
	if strings.TrimSpace(in.Area) == "" {
		return "", domain.Invalid("area", "must not be blank")
	}
	if in.Rent <= 0 {
		return "", domain.Invalid("rent", "must be greater than 0")
	}
	if in.Deposit < 0 {
		return "", domain.Invalid("deposit", "must not be negative")
	}
	rt, err := domain.ParseRoomType(in.RoomType)
	if err != nil {
		return "", err
	}
	if len(in.Description) > maxDescriptionLen {
		return "", domain.Invalid("description", "must be at most 1000 characters")
	}
	if !contactNumberRe.MatchString(strings.TrimSpace(in.ContactNumber)) {
		return "", domain.Invalid("contactNumber", "Enter valid phone number (8-12 digits)")
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return "", domain.Invalid("latitude", "must be between -90 and 90")
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return "", domain.Invalid("longitude", "must be between -180 and 180")
	}
	return rt, nil
}

// Create publica um anúncio em nome do usuário autenticado (email).
func (s *ListingService) Create(ctx context.Context, reporterEmail string, in CreateListingInput) (*domain.Listing, error) {
	rt, err := in.validate()
	if err != nil {
		return nil, err
	}
	reporter, err := s.reporter(ctx, reporterEmail)
	if err != nil {
		return nil, err
	}

	status := domain.StatusPending
	if s.AutoApprove {
		status = domain.StatusApproved
	}
	l := &domain.Listing{
		Area:          strings.TrimSpace(in.Area),
		Rent:          in.Rent,
		Deposit:       in.Deposit,
		RoomType:      rt,
		Description:   in.Description,
		ImageURL:      in.ImageURL,
		ContactNumber: strings.TrimSpace(in.ContactNumber),
		Status:        status,
		Latitude:      in.Latitude,
		Longitude:     in.Longitude,
		ReporterID:    reporter.ID,
		CreatedAt:     s.now(),
	}
	if err := s.Listings.CreateListing(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *ListingService) Get(ctx context.Context, id int64) (*domain.Listing, error) {
	return s.Listings.FindListing(ctx, id)
}

func (s *ListingService) Search(ctx context.Context, f domain.ListingFilter) ([]*domain.Listing, error) {
	return s.Listings.SearchListings(ctx, f.Normalize())
}

// Mine devolve todos os anúncios do usuário, em qualquer status.
func (s *ListingService) Mine(ctx context.Context, reporterEmail string) ([]*domain.Listing, error) {
	reporter, err := s.reporter(ctx, reporterEmail)
	if err != nil {
		return nil, err
	}
	return s.Listings.ListingsByReporter(ctx, reporter.ID)
}

// reporter resolve o usuário do token; usuário inexistente é falha de
// autenticação, não recurso ausente.
func (s *ListingService) reporter(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.Users.FindUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnknownIdentity
	}
	return u, err
}

func (s *ListingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
