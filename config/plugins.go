package config

// PluginConfig stores the type name of the plugin and raw configuration data
// for that plugin. Each plugin is responsible for decoding the raw map into its
// own concrete configuration struct.
type PluginConfig struct {
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
}
