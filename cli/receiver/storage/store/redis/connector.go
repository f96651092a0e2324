package redis

/*
Storage section expected in the config:

host = "localhost"
port = "6379"
password = ""
db = "0"
list = "locations"
*/

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	goredis "github.com/go-redis/redis/v8"

	"github.com/alitagps/tk103/libs/tk103"
)

type Connector struct {
	connection *goredis.Client
	config     map[string]string
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("invalid configuration reference")
	}
	c.config = cfg
	if c.config["list"] == "" {
		c.config["list"] = "locations"
	}

	db := 0
	if c.config["db"] != "" {
		var err error
		if db, err = strconv.Atoi(c.config["db"]); err != nil {
			return fmt.Errorf("failed to read redis db number: %v", err)
		}
	}

	c.connection = goredis.NewClient(&goredis.Options{
		Addr:     c.config["host"] + ":" + c.config["port"],
		Password: c.config["password"],
		DB:       db,
	})

	if err := c.connection.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("Redis is unreachable: %v", err)
	}
	return nil
}

func (c *Connector) Save(loc *tk103.Location) error {
	if loc == nil {
		return fmt.Errorf("invalid location reference")
	}

	payload, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("failed to serialize location: %v", err)
	}

	if err := c.connection.RPush(context.Background(), c.config["list"], payload).Err(); err != nil {
		return fmt.Errorf("failed to push location: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	return c.connection.Close()
}
