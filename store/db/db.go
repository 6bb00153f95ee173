package db

import (
	"github.com/pkg/errors"

	"github.com/yosefsha/myassistant/internal/profile"
	"github.com/yosefsha/myassistant/store"
	"github.com/yosefsha/myassistant/store/db/postgres"
	"github.com/yosefsha/myassistant/store/db/sqlite"
)

// NewDBDriver creates the store driver selected by profile.Driver.
// The memory driver has no persistent store and returns (nil, nil).
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	case "memory":
		return nil, nil
	default:
		return nil, errors.Errorf("unknown db driver: %s", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
