package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roomlink-api/marketplace/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type userModel struct {
	ID           int64  `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	CreatedAt    time.Time
}

func (userModel) TableName() string { return "users" }

type listingModel struct {
	ID            int64   `gorm:"primaryKey"`
	Area          string  `gorm:"index;not null"`
	Rent          float64 `gorm:"not null"`
	Deposit       float64
	RoomType      string `gorm:"not null"`
	Description   string `gorm:"size:1000"`
	ImageURL      string
	ContactNumber string `gorm:"not null"`
	Status        string `gorm:"index;not null"`
	Latitude      *float64
	Longitude     *float64
	ReporterID    int64     `gorm:"index;not null"`
	CreatedAt     time.Time `gorm:"index"`
}

func (listingModel) TableName() string { return "listings" }

// GormStore implementa UserStore e ListingStore em Postgres.
type GormStore struct {
	db *gorm.DB
}

// OpenPostgres conecta, ajusta o pool, faz ping e migra o schema.
func OpenPostgres(ctx context.Context, logger *logrus.Logger, dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	s := NewGormStore(db)
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("database connected and migrated")
	}
	return s, nil
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&userModel{}, &listingModel{}); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) CreateUser(ctx context.Context, u *domain.User) error {
	m := userModel{
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	u.ID = m.ID
	return nil
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, "email = ?", email)
}

func (s *GormStore) FindUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *GormStore) findUser(ctx context.Context, cond string, arg any) (*domain.User, error) {
	var m userModel
	if err := s.db.WithContext(ctx).Where(cond, arg).Take(&m).Error; err != nil {
		return nil, notFound(err, "find user")
	}
	return &domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		CreatedAt:    m.CreatedAt,
	}, nil
}

func (s *GormStore) CreateListing(ctx context.Context, l *domain.Listing) error {
	m := toListingModel(l)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("create listing: %w", err)
	}
	l.ID = m.ID
	return nil
}

func (s *GormStore) FindListing(ctx context.Context, id int64) (*domain.Listing, error) {
	var m listingModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, notFound(err, "find listing")
	}
	return m.toDomain(), nil
}

func (s *GormStore) SearchListings(ctx context.Context, f domain.ListingFilter) ([]*domain.Listing, error) {
	var rows []listingModel
	if err := searchQuery(s.db.WithContext(ctx), f.Normalize()).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("search listings: %w", err)
	}
	return toDomainListings(rows), nil
}

func (s *GormStore) ListingsByReporter(ctx context.Context, reporterID int64) ([]*domain.Listing, error) {
	var rows []listingModel
	err := s.db.WithContext(ctx).
		Where("reporter_id = ?", reporterID).
		Order("created_at desc, id desc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listings by reporter: %w", err)
	}
	return toDomainListings(rows), nil
}

// searchQuery espera um filtro já normalizado.
func searchQuery(db *gorm.DB, f domain.ListingFilter) *gorm.DB {
	q := db.Model(&listingModel{}).Where("status = ?", string(domain.StatusApproved))
	if f.Area != "" {
		q = q.Where("area ILIKE ?", "%"+f.Area+"%")
	}
	if f.RoomType != "" {
		q = q.Where("room_type = ?", string(f.RoomType))
	}
	if f.MinRent != nil {
		q = q.Where("rent >= ?", *f.MinRent)
	}
	if f.MaxRent != nil {
		q = q.Where("rent <= ?", *f.MaxRent)
	}
	return q.Order("created_at desc, id desc").Limit(f.Size).Offset(f.Offset())
}

func notFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func toListingModel(l *domain.Listing) listingModel {
	return listingModel{
		Area:          l.Area,
		Rent:          l.Rent,
		Deposit:       l.Deposit,
		RoomType:      string(l.RoomType),
		Description:   l.Description,
		ImageURL:      l.ImageURL,
		ContactNumber: l.ContactNumber,
		Status:        string(l.Status),
		Latitude:      l.Latitude,
		Longitude:     l.Longitude,
		ReporterID:    l.ReporterID,
		CreatedAt:     l.CreatedAt,
	}
}

func (m listingModel) toDomain() *domain.Listing {
	return &domain.Listing{
		ID:            m.ID,
		Area:          m.Area,
		Rent:          m.Rent,
		Deposit:       m.Deposit,
		RoomType:      domain.RoomType(m.RoomType),
		Description:   m.Description,
		ImageURL:      m.ImageURL,
		ContactNumber: m.ContactNumber,
		Status:        domain.ListingStatus(m.Status),
		Latitude:      m.Latitude,
		Longitude:     m.Longitude,
		ReporterID:    m.ReporterID,
		CreatedAt:     m.CreatedAt,
	}
}

func toDomainListings(rows []listingModel) []*domain.Listing {
	out := make([]*domain.Listing, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out
}
