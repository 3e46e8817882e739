package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr         string
	LogLevel     string
	RedisAddr    string
	KafkaBrokers string

	OpenDAPBaseURL string

	MaxHistory      int
	MaxChunkBytes   int
	CacheTTL        time.Duration
	CacheOpTimeout  time.Duration
	BackfillSleep   time.Duration
	LatestTickEvery time.Duration

	DisablePNGEncoder bool
}

func FromEnv() Config {
	return Config{
		Addr:              getenv("ADDR", ":8090"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		RedisAddr:         getenv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:      getenv("KAFKA_BROKERS", ""),
		OpenDAPBaseURL:    getenv("OPENDAP_BASE_URL", "https://nomads.ncep.noaa.gov/dods/gfs_0p50"),
		MaxHistory:        getint("MAX_HISTORY", 20),
		MaxChunkBytes:     getint("MAX_CHUNK_BYTES", 8*1024*1024),
		CacheTTL:          getduration("CACHE_TTL", time.Hour),
		CacheOpTimeout:    getduration("CACHE_OP_TIMEOUT", 2*time.Second),
		BackfillSleep:     getduration("BACKFILL_SLEEP", time.Second),
		LatestTickEvery:   getduration("LATEST_TICK_EVERY", 5*time.Minute),
		DisablePNGEncoder: getbool("DISABLE_PNG_ENCODER", false),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
