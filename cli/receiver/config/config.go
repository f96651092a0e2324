package config

/*
YAML configuration for the receiver. Queue capacities, the liveness sweep
interval and the broker switch live here; everything has a workable default
except the listen port and the primary database.
*/

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"gopkg.in/yaml.v2"
)

const (
	defaultRequestQueueSize = 500
	defaultMessageQueueSize = 100
	defaultLookupInterval   = 300 // seconds
)

type Broker struct {
	Active bool   `yaml:"active"`
	URL    string `yaml:"url"`
}

type Mail struct {
	Host             string   `yaml:"host"`
	Port             string   `yaml:"port"`
	Sender           string   `yaml:"sender"`
	SenderID         string   `yaml:"sender_id"`
	SenderPasswd     string   `yaml:"sender_passwd"`
	Devs             []string `yaml:"devs"`
	DevsEnable       bool     `yaml:"devs_enable"`
	Production       []string `yaml:"production"`
	ProductionEnable bool     `yaml:"production_enable"`
}

type Settings struct {
	Host          string `yaml:"host"`
	Port          string `yaml:"port"`
	ConnTTL       int    `yaml:"conn_ttl"`
	LogLevel      string `yaml:"log_level"`
	LogFilePath   string `yaml:"log_file_path"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`

	RequestQueueSize int `yaml:"request_queue_size"`
	MessageQueueSize int `yaml:"message_queue_size"`

	RequestLookupService  bool `yaml:"request_lookup_service"`
	RequestLookupInterval int  `yaml:"request_lookup_interval"` // seconds

	MessagingService bool `yaml:"messaging_service"`
	WarmCache        bool `yaml:"warm_cache"`

	MigrationsPath string `yaml:"migrations_path"`

	Database map[string]string            `yaml:"database"`
	Store    map[string]map[string]string `yaml:"storage"`
	Broker   Broker                       `yaml:"broker"`
	Mail     Mail                         `yaml:"mail"`
}

func (s *Settings) GetEmptyConnTTL() time.Duration {
	return time.Duration(s.ConnTTL) * time.Second
}

func (s *Settings) GetListenAddress() string {
	return s.Host + ":" + s.Port
}

func (s *Settings) GetRequestLookupInterval() time.Duration {
	return time.Duration(s.RequestLookupInterval) * time.Second
}

func (s *Settings) GetLogLevel() log.Level {
	var lvl log.Level

	switch s.LogLevel {
	case "DEBUG":
		lvl = log.DebugLevel
	case "INFO":
		lvl = log.InfoLevel
	case "WARN":
		lvl = log.WarnLevel
	case "ERROR":
		lvl = log.ErrorLevel
	default:
		lvl = log.InfoLevel
	}
	return lvl
}

// GetDatabaseDSN builds the lib/pq connection string for the primary store.
func (s *Settings) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		s.Database["host"], s.Database["port"], s.Database["user"],
		s.Database["password"], s.Database["database"], s.Database["sslmode"])
}

// GetDatabaseURL builds the URL form used by golang-migrate.
func (s *Settings) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		s.Database["user"], s.Database["password"], s.Database["host"],
		s.Database["port"], s.Database["database"], s.Database["sslmode"])
}

func (s *Settings) GetDatabaseAddress() string {
	return s.Database["host"] + ":" + s.Database["port"]
}

func New(confPath string) (Settings, error) {
	c := Settings{}
	data, err := os.ReadFile(confPath)
	if err != nil {
		return c, err
	}
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return c, err
	}

	if c.Port == "" {
		return c, fmt.Errorf("listen port is not set")
	}

	if c.RequestQueueSize <= 0 {
		c.RequestQueueSize = defaultRequestQueueSize
	}
	if c.MessageQueueSize <= 0 {
		c.MessageQueueSize = defaultMessageQueueSize
	}
	if c.RequestLookupInterval <= 0 {
		c.RequestLookupInterval = defaultLookupInterval
	}

	return c, err
}
