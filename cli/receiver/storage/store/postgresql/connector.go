package postgresql

/*
Storage section expected in the config:

host = "localhost"
port = "5432"
user = "postgres"
password = "postgres"
database = "receiver"
table = "location"
sslmode = "disable"
*/

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/alitagps/tk103/libs/tk103"
)

type Connector struct {
	connection *sql.DB
	config     map[string]string
}

func (c *Connector) Init(cfg map[string]string) error {
	var err error
	if cfg == nil {
		return fmt.Errorf("invalid configuration reference")
	}
	c.config = cfg
	if c.config["table"] == "" {
		c.config["table"] = "location"
	}
	connStr := fmt.Sprintf("dbname=%s host=%s port=%s user=%s password=%s sslmode=%s",
		c.config["database"], c.config["host"], c.config["port"], c.config["user"], c.config["password"], c.config["sslmode"])
	if c.connection, err = sql.Open("postgres", connStr); err != nil {
		return fmt.Errorf("PostgreSQL connection failed: %v", err)
	}

	if err = c.connection.Ping(); err != nil {
		return fmt.Errorf("PostgreSQL is unreachable: %v", err)
	}
	return err
}

func (c *Connector) Save(loc *tk103.Location) error {
	if loc == nil {
		return fmt.Errorf("invalid location reference")
	}

	insertQuery := fmt.Sprintf(
		"INSERT INTO %s (imei, latitude, longitude, speed, heading, distance, recorded_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		c.config["table"])
	if _, err := c.connection.Exec(insertQuery,
		loc.IMEI, loc.Latitude, loc.Longitude, loc.Speed, loc.Heading, loc.Distance, loc.Timestamp); err != nil {
		return fmt.Errorf("failed to insert location: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	return c.connection.Close()
}
