package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
)

var ErrEmptyAddress = errors.New("redis address is empty")

// Client is a pooled redis client. It also satisfies the client interface
// expected by redis_lock, so ring locks share the same pool.
type Client struct {
	opts *ClientOptions
	pool *redis.Pool
}

func NewClient(network, address, password string, opts ...ClientOption) *Client {
	c := Client{
		opts: &ClientOptions{
			network:  network,
			address:  address,
			password: password,
		},
	}

	for _, opt := range opts {
		opt(c.opts)
	}
	repairClient(c.opts)

	c.pool = c.getRedisPool()
	return &c
}

func (c *Client) getRedisPool() *redis.Pool {
	return &redis.Pool{
		MaxIdle:     c.opts.maxIdle,
		IdleTimeout: time.Duration(c.opts.idleTimeoutSeconds) * time.Second,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return c.getRedisConn(ctx)
		},
		MaxActive: c.opts.maxActive,
		Wait:      c.opts.wait,
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			_, err := c.Do("PING")
			return err
		},
	}
}

func (c *Client) getRedisConn(ctx context.Context) (redis.Conn, error) {
	if c.opts.address == "" {
		return nil, ErrEmptyAddress
	}

	var dialOpts []redis.DialOption
	if len(c.opts.password) > 0 {
		dialOpts = append(dialOpts, redis.DialPassword(c.opts.password))
	}
	return redis.DialContext(ctx, c.opts.network, c.opts.address, dialOpts...)
}

func (c *Client) GetConn(ctx context.Context) (redis.Conn, error) {
	return c.pool.GetContext(ctx)
}

// Close releases every pooled connection.
func (c *Client) Close() error {
	return c.pool.Close()
}

func (c *Client) HSet(ctx context.Context, table, key, val string) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("HSET", table, key, val)
	return err
}

func (c *Client) HGetAll(ctx context.Context, table string) (map[string]string, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return redis.StringMap(conn.Do("HGETALL", table))
}

func (c *Client) HDel(ctx context.Context, table, key string) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("HDEL", table, key)
	return err
}

func (c *Client) SAdd(ctx context.Context, table string, members ...string) error {
	if len(members) == 0 {
		return nil
	}

	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("SADD", redis.Args{}.Add(table).AddFlat(members)...)
	return err
}

func (c *Client) SMembers(ctx context.Context, table string) ([]string, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return redis.Strings(conn.Do("SMEMBERS", table))
}

func (c *Client) SRem(ctx context.Context, table string, members ...string) error {
	if len(members) == 0 {
		return nil
	}

	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("SREM", redis.Args{}.Add(table).AddFlat(members)...)
	return err
}

func (c *Client) Del(ctx context.Context, key string) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("DEL", key)
	return err
}

// Eval runs a lua script, used by redis_lock to release a lock it owns.
func (c *Client) Eval(ctx context.Context, src string, keyCount int, keysAndArgs []interface{}) (interface{}, error) {
	args := make([]interface{}, 2+len(keysAndArgs))
	args[0] = src
	args[1] = keyCount
	copy(args[2:], keysAndArgs)

	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return -1, err
	}
	defer conn.Close()

	return conn.Do("EVAL", args...)
}

// SetNEX runs SET key value EX expireSeconds NX. It returns 1 when the key
// was set and 0 when it already existed.
func (c *Client) SetNEX(ctx context.Context, key, value string, expireSeconds int64) (int64, error) {
	if key == "" || value == "" {
		return -1, errors.New("redis SET keyNX or value can't be empty")
	}

	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return -1, err
	}
	defer conn.Close()

	reply, err := conn.Do("SET", key, value, "EX", expireSeconds, "NX")
	if err != nil {
		return -1, err
	}
	if reply == nil {
		return 0, nil
	}
	if respStr, ok := reply.(string); ok && strings.ToLower(respStr) == "ok" {
		return 1, nil
	}

	return redis.Int64(reply, err)
}
