//go:build wireinject

package di

import (
	"github.com/google/wire"
)

// InitializeApp builds the App from environment configuration.
func InitializeApp() (*App, func(), error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}
