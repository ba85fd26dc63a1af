package utils

import "gorm.io/gorm"

// DBOption customizes the gorm session a repository call runs on.
type DBOption func(*gorm.DB) *gorm.DB

// WithTx runs the repository call inside an existing transaction, keeping the
// caller's context.
func WithTx(tx *gorm.DB) DBOption {
	return func(db *gorm.DB) *gorm.DB {
		return tx.WithContext(db.Statement.Context)
	}
}

func ApplyOptions(db *gorm.DB, opts ...DBOption) *gorm.DB {
	for _, opt := range opts {
		if opt != nil {
			db = opt(db)
		}
	}
	return db
}
