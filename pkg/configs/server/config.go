package server

import "time"

// Configuration of lmfdb server and tools.
//
// to get ServerConfig instance, use `TrySeal(*ServerConfigMarshall)` or `Unmarshal`.
type ServerConfig struct {
	server   *HTTPConfig
	database *DatabaseConfig
	knowl    *KnowlConfig
	ajax     *AjaxConfig
	cache    *CacheConfig
	auth     *AuthConfig
}

func (c *ServerConfig) Server() *HTTPConfig {
	return c.server
}

func (c *ServerConfig) Database() *DatabaseConfig {
	return c.database
}

func (c *ServerConfig) Knowl() *KnowlConfig {
	return c.knowl
}

func (c *ServerConfig) Ajax() *AjaxConfig {
	return c.ajax
}

func (c *ServerConfig) Cache() *CacheConfig {
	return c.cache
}

// Auth configuration for editors.
//
// nil when not configured. Then, knowls are read-only via HTTP.
func (c *ServerConfig) Auth() *AuthConfig {
	return c.auth
}

type HTTPConfig struct {
	port     int32
	loglevel string
}

// port to listen. default = 8080
func (h *HTTPConfig) Port() int32 {
	return h.port
}

// log level: one of debug, info, warn, error or off. default = info
func (h *HTTPConfig) LogLevel() string {
	return h.loglevel
}

type Backend string

const (
	Postgres Backend = "postgres"
	Mongo    Backend = "mongo"
)

type DatabaseConfig struct {
	backend Backend
	uri     string
	name    string
	schema  string
}

func (d *DatabaseConfig) Backend() Backend {
	return d.backend
}

// Connection string for database.
func (d *DatabaseConfig) URI() string {
	return d.uri
}

// database name. Used by mongo backend. default = "lmfdb"
func (d *DatabaseConfig) Name() string {
	return d.name
}

// directory of schema repository for postgres backend.
//
// When empty, the schema embedded in the binary is used.
func (d *DatabaseConfig) Schema() string {
	return d.schema
}

type KnowlConfig struct {
	maxDepth   int
	searchBase string
}

// how deep KNOWL_INC can be nested. default = 5
func (k *KnowlConfig) MaxDepth() int {
	return k.maxDepth
}

// base url of hashtag links. default = "/knowledge/"
func (k *KnowlConfig) SearchBase() string {
	return k.searchBase
}

type AjaxConfig struct {
	size            int
	expiration      time.Duration
	janitorInterval time.Duration
}

// max number of pending callbacks. default = 10000
func (a *AjaxConfig) Size() int {
	return a.size
}

// how long a callback is kept. default = 1h
func (a *AjaxConfig) Expiration() time.Duration {
	return a.expiration
}

// interval of periodic purge. default = 1m
func (a *AjaxConfig) JanitorInterval() time.Duration {
	return a.janitorInterval
}

type CacheConfig struct {
	size int
	ttl  time.Duration
}

// max number of cached pages. default = 1024
func (c *CacheConfig) Size() int {
	return c.size
}

// default = 15m
func (c *CacheConfig) TTL() time.Duration {
	return c.ttl
}

type AuthConfig struct {
	secretFile string
	issuer     string
	tokenTTL   time.Duration
}

// file containing HS256 signing key.
func (a *AuthConfig) SecretFile() string {
	return a.secretFile
}

// default = "lmfdb"
func (a *AuthConfig) Issuer() string {
	return a.issuer
}

// lifetime of issued tokens. default = 24h
func (a *AuthConfig) TokenTTL() time.Duration {
	return a.tokenTTL
}
