package atomref

import "embed"

// EmbeddedConfigFS provides the default settings file.
//
//go:embed config
var EmbeddedConfigFS embed.FS

const DefaultSettingsPath = "config/atomref.toml"
