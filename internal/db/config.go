package db

const (
	sslModeDisable      = "disable"
	defaultMaxOpenConns = 16
)

// DefaultConfig returns the default configuration of the database.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           "5432",
		Name:           "determined",
		User:           "postgres",
		SSLMode:        sslModeDisable,
		MaxOpenConns:   defaultMaxOpenConns,
		ConnectRetries: 15,
	}
}

// Config hosts configuration fields of the database.
type Config struct {
	User           string `json:"user"`
	Password       string `json:"password"`
	Host           string `json:"host"`
	Port           string `json:"port"`
	Name           string `json:"name"`
	SSLMode        string `json:"ssl_mode"`
	SSLRootCert    string `json:"ssl_root_cert"`
	MaxOpenConns   int    `json:"max_open_conns"`
	ConnectRetries uint64 `json:"connect_retries"`
	// Debug logs every query issued through bun.
	Debug bool `json:"debug"`
}
