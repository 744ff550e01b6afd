package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const defaultPostgresPort = 5432

// connParams is a resolved set of libpq connection keywords.
type connParams struct {
	host     string
	port     int
	user     string
	password string
	dbname   string
	sslmode  string
	// extra holds any other libpq keyword, e.g. application_name.
	extra map[string]string
}

// parseConnectionURL reads a postgres:// or postgresql:// URL.
// Query parameters other than sslmode are kept as extra libpq keywords.
func parseConnectionURL(raw string) (connParams, error) {
	if raw == "" {
		return connParams{}, fmt.Errorf("database URL is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return connParams{}, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return connParams{}, fmt.Errorf("invalid database URL scheme: %s (expected postgres or postgresql)", u.Scheme)
	}

	p := connParams{
		host:    u.Hostname(),
		port:    defaultPostgresPort,
		dbname:  strings.TrimPrefix(u.Path, "/"),
		sslmode: "disable",
		extra:   make(map[string]string),
	}
	if s := u.Port(); s != "" {
		port, err := strconv.Atoi(s)
		if err != nil {
			return connParams{}, fmt.Errorf("invalid port in database URL: %w", err)
		}
		p.port = port
	}
	if u.User != nil {
		p.user = u.User.Username()
		p.password, _ = u.User.Password()
	}
	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		if key == "sslmode" {
			p.sslmode = values[0]
			continue
		}
		p.extra[key] = values[0]
	}
	return p, nil
}

// params resolves the configuration into libpq keywords. The URL wins over the
// individual fields, and keywords given in the URL win over ApplicationName and ConnectTimeout.
func (c *DatabaseConfig) params() connParams {
	p := connParams{
		host:     c.Host,
		port:     c.Port,
		user:     c.User,
		password: c.Password,
		dbname:   c.Database,
		sslmode:  c.SSLMode,
		extra:    make(map[string]string),
	}
	if c.URL != "" {
		if parsed, err := parseConnectionURL(c.URL); err == nil {
			p = parsed
		}
	}
	if p.sslmode == "" {
		p.sslmode = "disable"
	}

	if _, ok := p.extra["application_name"]; !ok && c.ApplicationName != "" {
		p.extra["application_name"] = c.ApplicationName
	}
	if _, ok := p.extra["connect_timeout"]; !ok && c.ConnectTimeout > 0 {
		p.extra["connect_timeout"] = strconv.Itoa(int(c.ConnectTimeout / time.Second))
	}
	return p
}

// adopt copies the URL components onto the individual fields so logs and
// health output show where the service actually connects.
func (c *DatabaseConfig) adopt(p connParams) {
	c.Host = p.host
	c.Port = p.port
	c.User = p.user
	c.Password = p.password
	c.Database = p.dbname
	c.SSLMode = p.sslmode
}

// DSN returns the PostgreSQL connection string in libpq key=value form.
func (c *DatabaseConfig) DSN() string {
	p := c.params()

	pairs := []string{
		"host=" + quoteKeyword(p.host),
		"port=" + strconv.Itoa(p.port),
		"user=" + quoteKeyword(p.user),
		"password=" + quoteKeyword(p.password),
		"dbname=" + quoteKeyword(p.dbname),
		"sslmode=" + quoteKeyword(p.sslmode),
	}
	keys := make([]string, 0, len(p.extra))
	for k := range p.extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs = append(pairs, k+"="+quoteKeyword(p.extra[k]))
	}
	return strings.Join(pairs, " ")
}

// ConnectionURL returns the connection string in URL form, as expected by the migration runner.
func (c *DatabaseConfig) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}
	p := c.params()

	q := url.Values{}
	q.Set("sslmode", p.sslmode)
	for k, v := range p.extra {
		q.Set(k, v)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.user, p.password),
		Host:     net.JoinHostPort(p.host, strconv.Itoa(p.port)),
		Path:     "/" + p.dbname,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// quoteKeyword quotes a libpq keyword value when it is empty or holds spaces, quotes or backslashes.
func quoteKeyword(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
