package config

import (
	"libristack/internal/adapters/persistence/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Seeder handles database seeding
type Seeder struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, log *zap.Logger) *Seeder {
	return &Seeder{db: db, log: log}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	if err := s.seedBooks(); err != nil {
		s.log.Warn("book seeder skipped", zap.Error(err))
	}
	return nil
}

// seedBooks fills an empty catalog with a few titles for development.
// Admins are never seeded: the first one registers with the bootstrap code.
func (s *Seeder) seedBooks() error {
	var count int64
	if err := s.db.Model(&models.Book{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	books := []models.Book{
		{Title: "The Go Programming Language", Author: "Alan A. A. Donovan, Brian W. Kernighan", Language: "English", ISBN: "9780134190440", TotalCopies: 3, AvailableCopies: 3},
		{Title: "Designing Data-Intensive Applications", Author: "Martin Kleppmann", Language: "English", ISBN: "9781449373320", TotalCopies: 2, AvailableCopies: 2},
		{Title: "Der Process", Author: "Franz Kafka", Language: "German", TotalCopies: 1, AvailableCopies: 1},
		{Title: "Cien años de soledad", Author: "Gabriel García Márquez", Language: "Spanish", TotalCopies: 2, AvailableCopies: 2},
		{Title: "Le Petit Prince", Author: "Antoine de Saint-Exupéry", Language: "French", TotalCopies: 4, AvailableCopies: 4},
	}

	if err := s.db.Create(&books).Error; err != nil {
		return err
	}

	s.log.Info("seeded sample books", zap.Int("count", len(books)))
	return nil
}
