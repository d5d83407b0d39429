package database

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/MarcoPoloResearchLab/memevote/internal/config"
	"github.com/MarcoPoloResearchLab/memevote/internal/memes"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Options selects the store backing submissions and upvotes.
type Options struct {
	Driver string
	URL    string
	// Key is injected as the password of a postgres DSN when set.
	Key string
}

// Open establishes the configured connection and performs schema migrations.
func Open(options Options, logger *zap.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(options.URL) == "" {
		return nil, fmt.Errorf("database url is required")
	}

	var dialector gorm.Dialector
	switch options.Driver {
	case config.DatabaseDriverSQLite, "":
		dialector = sqlite.Open(options.URL)
	case config.DatabaseDriverPostgres:
		dsn, err := postgresDSN(options.URL, options.Key)
		if err != nil {
			return nil, err
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", options.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if options.Driver != config.DatabaseDriverPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&memes.Submission{}, &memes.Upvote{}, &migrationRecord{}); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", dialector.Name()))
	}

	return db, nil
}

// postgresDSN merges the key into either URL or keyword/value DSN forms.
func postgresDSN(rawURL, key string) (string, error) {
	if key == "" {
		return rawURL, nil
	}
	if strings.HasPrefix(rawURL, "postgres://") || strings.HasPrefix(rawURL, "postgresql://") {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return "", fmt.Errorf("invalid postgres url: %w", err)
		}
		username := "postgres"
		if parsed.User != nil && parsed.User.Username() != "" {
			username = parsed.User.Username()
		}
		parsed.User = url.UserPassword(username, key)
		return parsed.String(), nil
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(key)
	return fmt.Sprintf("%s password='%s'", strings.TrimSpace(rawURL), escaped), nil
}
