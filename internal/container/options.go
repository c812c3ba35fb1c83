package container

import "fmt"

// Options configures the server. humacli binds every field to a flag and a SERVICE_* variable.
type Options struct {
	Port      int    `default:"8888" help:"Port to listen on" short:"p"`
	BaseURL   string `default:"" help:"Public base URL (defaults to http://localhost:port)"`
	LogFormat string `default:"console" help:"Log format: console or json"`
	LogLevel  string `default:"info" help:"Log level: debug, info, warn or error"`

	StoreBackend string `default:"memory" help:"Key-value backend: memory, redis or postgres" short:"s"`
	RedisAddr    string `default:"localhost:6379" help:"Redis server address" short:"r"`
	DatabaseURL  string `default:"postgres://localhost:5432/shortlinks?sslmode=disable" help:"Postgres connection string"`
	CacheSeconds int    `default:"0" help:"Cache Postgres reads in Redis for this many seconds (0 disables)"`
	ValueCodec   string `default:"json" help:"Stored value encoding: json or cbor"`

	CodeStrategy    string `default:"hash" help:"Short code strategy: hash, owner-hash or token"`
	CodeLength      int    `default:"8" help:"Length of generated token codes" short:"c"`
	ConflictRetries int    `default:"5" help:"Attempts for a link, click or session write that lost a concurrent update"`

	GitHubClientID     string `default:"" help:"GitHub OAuth app client id"`
	GitHubClientSecret string `default:"" help:"GitHub OAuth app client secret"`
	RedirectURI        string `default:"" help:"OAuth callback URL (defaults to base URL + /oauth/callback)"`
	CookieSecure       bool   `default:"false" help:"Mark cookies Secure"`

	EventsBackend   string `default:"memory" help:"Link event transport: memory or redis"`
	RateLimitStore  string `default:"memory" help:"Rate limit counters: memory or redis"`
	RateLimitReads  int    `default:"600" help:"Read requests per minute per client (0 disables)"`
	RateLimitWrites int    `default:"60" help:"Write requests per minute per client (0 disables)"`
}

// PublicURL is the base URL short links are displayed under.
func (o *Options) PublicURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}

	return fmt.Sprintf("http://localhost:%d", o.Port)
}

// CallbackURL is the OAuth redirect URI.
func (o *Options) CallbackURL() string {
	if o.RedirectURI != "" {
		return o.RedirectURI
	}

	return o.PublicURL() + "/oauth/callback"
}
