package domain

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

type RoomType string

const (
	Room1RK  RoomType = "ROOM_1RK"
	Room1BHK RoomType = "ROOM_1BHK"
	Shared   RoomType = "SHARED"
)

func ParseRoomType(s string) (RoomType, error) {
	switch rt := RoomType(strings.ToUpper(strings.TrimSpace(s))); rt {
	case Room1RK, Room1BHK, Shared:
		return rt, nil
	default:
		return "", Invalid("roomType", fmt.Sprintf("unknown room type %q", s))
	}
}

type ListingStatus string

const (
	StatusPending  ListingStatus = "PENDING"
	StatusApproved ListingStatus = "APPROVED"
	StatusRejected ListingStatus = "REJECTED"
)

type Listing struct {
	ID            int64
	Area          string
	Rent          float64
	Deposit       float64
	RoomType      RoomType
	Description   string
	ImageURL      string
	ContactNumber string
	Status        ListingStatus
	Latitude      *float64
	Longitude     *float64
	ReporterID    int64
	CreatedAt     time.Time
}

// ListingFilter seleciona anúncios aprovados. Campos zero não filtram.
type ListingFilter struct {
	Area     string
	MinRent  *float64
	MaxRent  *float64
	RoomType RoomType
	Page     int
	Size     int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize limita página >= 0 e tamanho em [1, MaxPageSize], e garante que
// Page*Size (o offset) cabe em int.
func (f ListingFilter) Normalize() ListingFilter {
	if f.Page < 0 {
		f.Page = 0
	}
	switch {
	case f.Size == 0:
		f.Size = DefaultPageSize
	case f.Size < 1:
		f.Size = 1
	case f.Size > MaxPageSize:
		f.Size = MaxPageSize
	}
	if f.Page > math.MaxInt/f.Size {
		f.Page = math.MaxInt / f.Size
	}
	return f
}

// Offset devolve Page*Size; o filtro precisa estar normalizado.
func (f ListingFilter) Offset() int {
	return f.Page * f.Size
}

// Matches aplica o filtro a um anúncio (usado pelo store em memória).
func (f ListingFilter) Matches(l *Listing) bool {
	if l.Status != StatusApproved {
		return false
	}
	if f.Area != "" && !strings.Contains(strings.ToLower(l.Area), strings.ToLower(f.Area)) {
		return false
	}
	if f.RoomType != "" && l.RoomType != f.RoomType {
		return false
	}
	if f.MinRent != nil && l.Rent < *f.MinRent {
		return false
	}
	if f.MaxRent != nil && l.Rent > *f.MaxRent {
		return false
	}
	return true
}

// ListingStore persiste anúncios. Search devolve os aprovados, mais novos primeiro.
type ListingStore interface {
	CreateListing(ctx context.Context, l *Listing) error
	FindListing(ctx context.Context, id int64) (*Listing, error)
	SearchListings(ctx context.Context, f ListingFilter) ([]*Listing, error)
	ListingsByReporter(ctx context.Context, reporterID int64) ([]*Listing, error)
}
