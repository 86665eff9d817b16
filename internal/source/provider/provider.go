// Package provider builds the configured candle source.
package provider

import (
	"fmt"

	"fxscanner/config"
	"fxscanner/internal/model"
	"fxscanner/internal/source"
	"fxscanner/internal/source/angel"
	"fxscanner/internal/source/twelvedata"
	"fxscanner/internal/store/sqlite"
	"fxscanner/pkg/smartconnect"
)

// Build returns the provider named in cfg. REST providers are wrapped so
// that timeframes they do not serve are resampled from 1-minute bars; the
// SQLite archive is returned as is and needs a non-nil store.
func Build(cfg *config.Config, store *sqlite.Store) (model.CandleSource, error) {
	switch cfg.Provider {
	case config.ProviderTwelveData:
		td := twelvedata.New(cfg.TwelveDataBaseURL, cfg.TwelveDataAPIKey)
		return source.NewResampling(td, twelvedata.Native()...), nil
	case config.ProviderAngel:
		sc := smartconnect.New(smartconnect.Config{APIKey: cfg.AngelAPIKey})
		src := angel.New(sc, angel.Credentials{
			ClientCode: cfg.AngelClientCode,
			Password:   cfg.AngelPassword,
			TOTPSecret: cfg.AngelTOTPSecret,
		})
		return source.NewResampling(src, angel.Native()...), nil
	case config.ProviderSQLite:
		if store == nil {
			return nil, fmt.Errorf("provider %s: no archive open", cfg.Provider)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}
