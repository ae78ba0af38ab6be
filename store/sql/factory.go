package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-buildhealth/core"
)

// RepositoryFactory builds the SQL-backed stores over one bun handle.
type RepositoryFactory struct {
	db *bun.DB

	providerStore *ProviderStore
	buildStore    *BuildStore
	alertStore    *AlertStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.providerStore != nil && f.buildStore != nil && f.alertStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) ProviderStore() core.ProviderStore {
	if f == nil {
		return nil
	}
	return f.providerStore
}

func (f *RepositoryFactory) BuildStore() core.BuildStore {
	if f == nil {
		return nil
	}
	return f.buildStore
}

func (f *RepositoryFactory) AlertStore() core.AlertLedger {
	if f == nil {
		return nil
	}
	return f.alertStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	providerStore, err := NewProviderStore(f.db)
	if err != nil {
		return err
	}
	f.providerStore = providerStore

	buildStore, err := NewBuildStore(f.db)
	if err != nil {
		return err
	}
	f.buildStore = buildStore

	alertStore, err := NewAlertStore(f.db)
	if err != nil {
		return err
	}
	f.alertStore = alertStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
