// Package directory resolves office records owned by the office directory. The ledger only
// reads them.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=mocks/mock_directory.go -package=mocks -source=directory.go Directory

// Directory resolves offices by id.
type Directory interface {
	Office(ctx context.Context, id uuid.UUID) (Office, error)
}

// Office is the directory's view of a receiving office.
type Office struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Country            string    `json:"country"`
	AcceptedCurrencies []string  `json:"accepted_currencies"`
	Active             bool      `json:"active"`
}

// Accepts reports whether the office pays out currency.
func (o Office) Accepts(currency string) bool {
	return slices.ContainsFunc(o.AcceptedCurrencies, func(c string) bool {
		return strings.EqualFold(c, currency)
	})
}

// OfficeGetter is the slice of repository.Querier the directory needs.
type OfficeGetter interface {
	GetOffice(ctx context.Context, id uuid.UUID) (repository.Office, error)
}

const redisKeyPrefix = "office"

// Cached reads offices from Postgres through a Redis cache. Redis failures fall back to the
// database.
type Cached struct {
	db    OfficeGetter
	redis redis.Cmdable
	ttl   time.Duration
}

func NewCached(db OfficeGetter, rdb redis.Cmdable, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cached{db: db, redis: rdb, ttl: ttl}
}

func (c *Cached) Office(ctx context.Context, id uuid.UUID) (Office, error) {
	if c.redis != nil {
		val, err := c.redis.Get(ctx, redisKey(id)).Result()
		if err == nil {
			var o Office
			if json.Unmarshal([]byte(val), &o) == nil {
				return o, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			zap.L().Warn("redis office lookup failed", zap.Error(err))
		}
	}

	row, err := c.db.GetOffice(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Office{}, &domain.Error{Code: domain.CodeNotFound, Message: "office not found"}
		}
		return Office{}, fmt.Errorf("get office: %w", err)
	}
	o := Office{
		ID:                 row.ID,
		Name:               row.Name,
		Country:            strings.ToUpper(strings.TrimSpace(row.Country)),
		AcceptedCurrencies: row.AcceptedCurrencies,
		Active:             row.Active,
	}
	c.cache(ctx, o)
	return o, nil
}

// Invalidate drops the cached copy of an office.
func (c *Cached) Invalidate(ctx context.Context, id uuid.UUID) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, redisKey(id)).Err(); err != nil {
		zap.L().Warn("redis office invalidate failed", zap.Error(err))
	}
}

// Refresh drops the cached copy of an office and reloads it from the database.
func (c *Cached) Refresh(ctx context.Context, id uuid.UUID) (Office, error) {
	c.Invalidate(ctx, id)
	return c.Office(ctx, id)
}

func (c *Cached) cache(ctx context.Context, o Office) {
	if c.redis == nil {
		return
	}
	payload, err := json.Marshal(o)
	if err != nil {
		zap.L().Warn("marshal office cache", zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, redisKey(o.ID), payload, c.ttl).Err(); err != nil {
		zap.L().Warn("redis office cache set failed", zap.Error(err))
	}
}

func redisKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, id)
}
