package mysql

/*
Storage section expected in the config:

host = "localhost"
port = "3306"
user = "receiver"
password = "receiver"
database = "receiver"
table = "location"
*/

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

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
	connStr := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		c.config["user"], c.config["password"], c.config["host"], c.config["port"], c.config["database"])
	if c.connection, err = sql.Open("mysql", connStr); err != nil {
		return fmt.Errorf("MySQL connection failed: %v", err)
	}

	if err = c.connection.Ping(); err != nil {
		return fmt.Errorf("MySQL is unreachable: %v", err)
	}
	return err
}

func (c *Connector) Save(loc *tk103.Location) error {
	if loc == nil {
		return fmt.Errorf("invalid location reference")
	}

	insertQuery := fmt.Sprintf(
		"INSERT INTO %s (imei, latitude, longitude, speed, heading, distance, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
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
