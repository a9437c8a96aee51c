// Package proxyalloc implements the Proxy Allocator: per-host LRU
// selection of a healthy proxy binding, with independent health
// accounting per (host, proxy) pair and per proxy.
package proxyalloc

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alpes214/crawler/internal/apperrors"
	"github.com/alpes214/crawler/internal/config"
	"github.com/alpes214/crawler/internal/model"
)

type Allocator struct {
	db     *gorm.DB
	policy config.ProxyConfig
	redis  *redis.Client
}

// New builds an Allocator. redisClient is optional (nil disables the
// distributed pre-lock in Acquire, falling back to DB row locking alone).
func New(db *gorm.DB, policy config.ProxyConfig, redisClient *redis.Client) *Allocator {
	return &Allocator{db: db, policy: policy, redis: redisClient}
}

// Handle identifies the binding an Acquire call selected, so Release can
// apply the matching outcome without a second query.
type Handle struct {
	BindingID uint
	ProxyID   uint
	HostID    uint
}

// Acquire selects, per host, the least-recently-used healthy binding and
// advances its last_used_at to now in the same transaction, with every
// candidate row locked FOR UPDATE, so two concurrent callers can never win
// the same binding.
func (a *Allocator) Acquire(ctx context.Context, hostID uint, now time.Time) (*Handle, error) {
	lock := NewHostLock(a.redis, hostID)
	if ok, err := lock.TryLock(ctx); err == nil && ok {
		defer func() { _ = lock.Unlock(ctx) }()
	}
	// A lock error or a lost race both fall through to the transaction
	// below unlocked, exactly as a won lock does — the row lock it takes is
	// what correctness relies on, and the host lock's outcome does not
	// change whether a caller reaches the database.

	var handle *Handle

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []model.HostProxyBinding
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Joins("JOIN proxies ON proxies.id = host_proxy_bindings.proxy_id AND proxies.active = true").
			Where("host_proxy_bindings.host_id = ? AND host_proxy_bindings.active = true AND host_proxy_bindings.consec_fail_ct < ?",
				hostID, a.policy.BindingFailureThreshold).
			Find(&candidates).Error
		if err != nil {
			return apperrors.Wrap(apperrors.StoreUnavailable, "acquire failed", err)
		}

		winner := chooseBinding(candidates)
		if winner == nil {
			return apperrors.New(apperrors.NoProxyAvailable, "no healthy proxy bound to this host")
		}

		if err := tx.Model(winner).Update("last_used_at", now).Error; err != nil {
			return apperrors.Wrap(apperrors.StoreUnavailable, "acquire touch failed", err)
		}

		handle = &Handle{BindingID: winner.ID, ProxyID: winner.ProxyID, HostID: winner.HostID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// Outcome carries the release-time health signal for a handle.
type Outcome struct {
	Success   bool
	LatencyMs int64
	Reason    string
}

// Release applies success/failure accounting to both the binding and the
// global proxy record, using independent thresholds and counters.
func (a *Allocator) Release(ctx context.Context, handle *Handle, outcome Outcome) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var binding model.HostProxyBinding
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&binding, handle.BindingID).Error; err != nil {
			return apperrors.Wrap(apperrors.NotFound, "binding not found", err)
		}
		var proxy model.Proxy
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&proxy, handle.ProxyID).Error; err != nil {
			return apperrors.Wrap(apperrors.NotFound, "proxy not found", err)
		}

		now := time.Now()
		if outcome.Success {
			binding.ConsecFailCt = 0
			binding.SuccessCt++
			binding.AvgLatencyMs = ewma(binding.AvgLatencyMs, float64(outcome.LatencyMs))

			proxy.ConsecFailCt = 0
			proxy.SuccessCt++
			proxy.LastSuccessAt = &now
			proxy.AvgLatencyMs = ewma(proxy.AvgLatencyMs, float64(outcome.LatencyMs))
			if !proxy.Active {
				proxy.Active = true
			}
		} else {
			binding.FailureCt++
			binding.ConsecFailCt++
			if binding.ConsecFailCt >= a.policy.BindingFailureThreshold {
				binding.Active = false
			}

			proxy.FailureCt++
			proxy.ConsecFailCt++
			proxy.LastFailureAt = &now
			if proxy.ConsecFailCt >= a.policy.GlobalFailureThreshold {
				proxy.Active = false
			}
		}

		if err := tx.Save(&binding).Error; err != nil {
			return apperrors.Wrap(apperrors.StoreUnavailable, "release binding update failed", err)
		}
		if err := tx.Save(&proxy).Error; err != nil {
			return apperrors.Wrap(apperrors.StoreUnavailable, "release proxy update failed", err)
		}
		return nil
	})
}

func ewma(old, sample float64) float64 {
	if old == 0 {
		return sample
	}
	return (old + sample) / 2
}

// Bind creates (or reactivates) a (host, proxy) binding.
func (a *Allocator) Bind(ctx context.Context, hostID, proxyID uint, priority int) (*model.HostProxyBinding, error) {
	var binding model.HostProxyBinding
	err := a.db.WithContext(ctx).
		Where(model.HostProxyBinding{HostID: hostID, ProxyID: proxyID}).
		Attrs(model.HostProxyBinding{Priority: priority, Active: true}).
		FirstOrCreate(&binding).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "bind failed", err)
	}
	if !binding.Active {
		binding.Active = true
		binding.Priority = priority
		if err := a.db.WithContext(ctx).Save(&binding).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.StoreUnavailable, "bind reactivate failed", err)
		}
	}
	return &binding, nil
}

// Unbind deactivates a (host, proxy) binding rather than deleting it, so
// its history and counters survive.
func (a *Allocator) Unbind(ctx context.Context, hostID, proxyID uint) error {
	res := a.db.WithContext(ctx).Model(&model.HostProxyBinding{}).
		Where("host_id = ? AND proxy_id = ?", hostID, proxyID).
		Update("active", false)
	if res.Error != nil {
		return apperrors.Wrap(apperrors.StoreUnavailable, "unbind failed", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.NotFound, "binding not found")
	}
	return nil
}

// Stats returns every binding for a host, for admin health inspection.
func (a *Allocator) Stats(ctx context.Context, hostID uint) ([]model.HostProxyBinding, error) {
	var bindings []model.HostProxyBinding
	err := a.db.WithContext(ctx).Where("host_id = ?", hostID).Find(&bindings).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "stats failed", err)
	}
	return bindings, nil
}
