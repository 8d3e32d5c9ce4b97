//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/lockstep/internal/app"
)

func InitializeApp(path app.ConfigPath) (*app.App, func(), error) {
	wire.Build(app.ProviderSet)
	return nil, nil, nil
}
