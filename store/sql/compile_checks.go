package sqlstore

import "github.com/goliatone/go-buildhealth/core"

var (
	_ core.ProviderStore = (*ProviderStore)(nil)
	_ core.BuildStore    = (*BuildStore)(nil)
	_ core.AlertLedger   = (*AlertStore)(nil)
)
