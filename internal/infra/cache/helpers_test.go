package cache

import "md2html/internal/config"

func configWithMemory() config.Config {
	var cfg config.Config
	cfg.Cache.Backend = config.CacheBackendMemory
	return cfg
}
