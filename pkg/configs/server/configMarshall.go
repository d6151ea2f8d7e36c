package server

import (
	"fmt"
	"time"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

// Configuration of lmfdb.
//
// This type is marshalling value and mutable.
// Consider to use immutable version, `ServerConfig`.
type ServerConfigMarshall struct {
	Server   *HTTPConfigMarshall     `yaml:"server,omitempty"`
	Database *DatabaseConfigMarshall `yaml:"database"`
	Knowl    *KnowlConfigMarshall    `yaml:"knowl,omitempty"`
	Ajax     *AjaxConfigMarshall     `yaml:"ajax,omitempty"`
	Cache    *CacheConfigMarshall    `yaml:"cache,omitempty"`
	Auth     *AuthConfigMarshall     `yaml:"auth,omitempty"`
}

var _ Marshalled[*ServerConfig] = &ServerConfigMarshall{}

func (s *ServerConfigMarshall) trySeal(path string) *ServerConfig {
	var auth *AuthConfig
	if s.Auth != nil {
		auth = s.Auth.trySeal(path + ".auth")
	}
	return &ServerConfig{
		server:   orEmpty(s.Server).trySeal(path + ".server"),
		database: nonnil(s.Database, path+".database").trySeal(path + ".database"),
		knowl:    orEmpty(s.Knowl).trySeal(path + ".knowl"),
		ajax:     orEmpty(s.Ajax).trySeal(path + ".ajax"),
		cache:    orEmpty(s.Cache).trySeal(path + ".cache"),
		auth:     auth,
	}
}

type HTTPConfigMarshall struct {
	Port     int32  `yaml:"port,omitempty"`
	LogLevel string `yaml:"loglevel,omitempty"`
}

func (h *HTTPConfigMarshall) trySeal(path string) *HTTPConfig {
	loglevel := withDefault(h.LogLevel, "info")
	switch loglevel {
	case "debug", "info", "warn", "error", "off":
	default:
		panic(fmt.Sprintf("%s.loglevel: unknown level %q", path, loglevel))
	}
	return &HTTPConfig{
		port:     positive(withDefault(h.Port, 8080), path+".port"),
		loglevel: loglevel,
	}
}

type DatabaseConfigMarshall struct {
	Backend string `yaml:"backend"`
	URI     string `yaml:"uri"`
	Name    string `yaml:"name,omitempty"`
	Schema  string `yaml:"schema,omitempty"`
}

func (d *DatabaseConfigMarshall) trySeal(path string) *DatabaseConfig {
	backend := Backend(required(d.Backend, path+".backend"))
	switch backend {
	case Postgres, Mongo:
	default:
		panic(fmt.Sprintf("%s.backend: should be %s or %s, but %q", path, Postgres, Mongo, backend))
	}
	return &DatabaseConfig{
		backend: backend,
		uri:     required(d.URI, path+".uri"),
		name:    withDefault(d.Name, "lmfdb"),
		schema:  d.Schema,
	}
}

type KnowlConfigMarshall struct {
	MaxDepth   int    `yaml:"maxDepth,omitempty"`
	SearchBase string `yaml:"searchBase,omitempty"`
}

func (k *KnowlConfigMarshall) trySeal(path string) *KnowlConfig {
	return &KnowlConfig{
		maxDepth:   positive(withDefault(k.MaxDepth, 5), path+".maxDepth"),
		searchBase: withDefault(k.SearchBase, "/knowledge/"),
	}
}

type AjaxConfigMarshall struct {
	Size            int           `yaml:"size,omitempty"`
	Expiration      time.Duration `yaml:"expiration,omitempty"`
	JanitorInterval time.Duration `yaml:"janitorInterval,omitempty"`
}

func (a *AjaxConfigMarshall) trySeal(path string) *AjaxConfig {
	return &AjaxConfig{
		size:            positive(withDefault(a.Size, 10000), path+".size"),
		expiration:      positive(withDefault(a.Expiration, time.Hour), path+".expiration"),
		janitorInterval: positive(withDefault(a.JanitorInterval, time.Minute), path+".janitorInterval"),
	}
}

type CacheConfigMarshall struct {
	Size int           `yaml:"size,omitempty"`
	TTL  time.Duration `yaml:"ttl,omitempty"`
}

func (c *CacheConfigMarshall) trySeal(path string) *CacheConfig {
	return &CacheConfig{
		size: positive(withDefault(c.Size, 1024), path+".size"),
		ttl:  positive(withDefault(c.TTL, 15*time.Minute), path+".ttl"),
	}
}

type AuthConfigMarshall struct {
	SecretFile string        `yaml:"secretFile"`
	Issuer     string        `yaml:"issuer,omitempty"`
	TokenTTL   time.Duration `yaml:"tokenTTL,omitempty"`
}

func (a *AuthConfigMarshall) trySeal(path string) *AuthConfig {
	return &AuthConfig{
		secretFile: required(a.SecretFile, path+".secretFile"),
		issuer:     withDefault(a.Issuer, "lmfdb"),
		tokenTTL:   positive(withDefault(a.TokenTTL, 24*time.Hour), path+".tokenTTL"),
	}
}

func orEmpty[T any](v *T) *T {
	if v == nil {
		return new(T)
	}
	return v
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}

func withDefault[T comparable](v T, d T) T {
	if v == *new(T) {
		return d
	}
	return v
}

func positive[T int | int32 | time.Duration](v T, path string) T {
	if v <= 0 {
		panic(fmt.Sprintf("%s should be positive, but %v", path, v))
	}
	return v
}
