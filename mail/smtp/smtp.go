package smtp

import (
	"net"
	"os"
	"strconv"
	"time"
)

// Security selects how the SMTP connection is protected.
type Security string

const (
	SecurityPlain    Security = "plain"
	SecurityStartTLS Security = "starttls"
)

const (
	defaultPort         = 25
	defaultStartTLSPort = 587
	defaultHelo         = "localhost"
)

// Config contains SMTP connection parameters.
type Config struct {
	Host     string        `envconfig:"SMTP_HOST" default:"localhost"`
	Port     int           `envconfig:"SMTP_PORT" default:"0"`          // 0: 587 with STARTTLS, 25 otherwise
	StartTLS bool          `envconfig:"SMTP_STARTTLS" default:"false"`  // upgrade with STARTTLS
	Login    string        `envconfig:"SMTP_LOGIN"`                     // implies STARTTLS
	Password string        `envconfig:"SMTP_PASSWORD"`                  // prompted when empty and Login is set
	Helo     string        `envconfig:"SMTP_HELO"`                      // EHLO name, system hostname when empty
	Insecure bool          `envconfig:"SMTP_INSECURE" default:"false"`  // skip certificate verification
	Timeout  time.Duration `envconfig:"SMTP_TIMEOUT" default:"30s"`     // dial and command timeout
}

// Resolve applies the connection policy: a login forces STARTTLS and an
// unset port becomes 587 with STARTTLS or 25 without.
func (c Config) Resolve() Config {
	if c.Login != "" {
		c.StartTLS = true
	}
	if c.Port == 0 {
		if c.StartTLS {
			c.Port = defaultStartTLSPort
		} else {
			c.Port = defaultPort
		}
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	return c
}

// Security returns the transport protection mode.
func (c Config) Security() Security {
	if c.StartTLS || c.Login != "" {
		return SecurityStartTLS
	}
	return SecurityPlain
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) heloName() string {
	if c.Helo != "" {
		return c.Helo
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultHelo
}
