package logger

import (
	"time"

	"go.uber.org/zap"
)

func String(key, val string) Field {
	return zap.String(key, val)
}

func Int(key string, val int) Field {
	return zap.Int(key, val)
}

func Int64(key string, val int64) Field {
	return zap.Int64(key, val)
}

func Bool(key string, val bool) Field {
	return zap.Bool(key, val)
}

func Duration(key string, val time.Duration) Field {
	return zap.Duration(key, val)
}

func Error(err error) Field {
	return zap.Error(err)
}

func Any(key string, val any) Field {
	return zap.Any(key, val)
}

func Strings(key string, val []string) Field {
	return zap.Strings(key, val)
}

// SiteID tags an entry with the site being processed.
func SiteID(id string) Field {
	return zap.String("site_id", id)
}

// URL tags an entry with the remote URL involved.
func URL(u string) Field {
	return zap.String("url", u)
}

// TypeSlug tags an entry with the content type slug.
func TypeSlug(slug string) Field {
	return zap.String("type_slug", slug)
}
