package repository

import (
	"sync"

	"gorm.io/gorm"

	"github.com/mweidner/JadeFrame/internal/pkg/database"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db   *gorm.DB
	jobs JobRepository
	once sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{db: db}
}

// GetJobRepository returns the job repository instance
func (f *Factory) GetJobRepository() JobRepository {
	f.once.Do(func() {
		f.jobs = NewJobRepository(f.db)
	})
	return f.jobs
}

var (
	globalFactory *Factory
	globalOnce    sync.Once
)

// GetGlobalFactory returns the process-wide factory bound to the global DB.
func GetGlobalFactory() *Factory {
	globalOnce.Do(func() {
		globalFactory = NewFactory(database.GetDB())
	})
	return globalFactory
}
