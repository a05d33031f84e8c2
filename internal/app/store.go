package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/llmgateway/gateway/internal/billing"
	"github.com/llmgateway/gateway/internal/credentials"
	"github.com/llmgateway/gateway/internal/datastore"
	"github.com/llmgateway/gateway/internal/proxy"
)

// decimalToMicros and microsToDecimal convert between shopspring/decimal
// credit amounts and the integer micro-credit units stored in Redis, so
// DebitCredits can use a single atomic HINCRBY instead of a
// read-modify-write.
func decimalToMicros(d decimal.Decimal) int64 {
	return d.Shift(6).Round(0).IntPart()
}

func microsToDecimal(micros int64) decimal.Decimal {
	return decimal.New(micros, -6)
}

// RedisStore is the Redis-backed persistence seam supplied to the gateway
// at startup, per the doc comments on credentials.Store and proxy.AuthStore
// ("A Redis- or datastore-backed implementation is supplied by internal/app
// at startup"). It implements credentials.Store, proxy.AuthStore, and
// billing.Store against a shared *redis.Client, using the same plain-hash,
// graceful-key-miss style as internal/cache.ExactCache.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore builds a RedisStore over rdb.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// ── credentials.Store ────────────────────────────────────────────────────

func (s *RedisStore) GetProviderKey(ctx context.Context, orgID, providerID string) (credentials.StoredKey, bool, error) {
	return s.loadStoredKey(ctx, providerKeyKey(orgID, providerID))
}

func (s *RedisStore) GetCustomProviderKey(ctx context.Context, orgID, customName string) (credentials.StoredKey, bool, error) {
	return s.loadStoredKey(ctx, customProviderKeyKey(orgID, customName))
}

func (s *RedisStore) loadStoredKey(ctx context.Context, key string) (credentials.StoredKey, bool, error) {
	m, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return credentials.StoredKey{}, false, err
	}
	if len(m) == 0 {
		return credentials.StoredKey{}, false, nil
	}
	return credentials.StoredKey{
		Token:   m["token"],
		BaseURL: m["base_url"],
		Active:  m["active"] == "1",
	}, true, nil
}

func (s *RedisStore) GetOrganization(ctx context.Context, orgID string) (credentials.Organization, error) {
	m, err := s.rdb.HGetAll(ctx, orgMetaKey(orgID)).Result()
	if err != nil {
		return credentials.Organization{}, err
	}
	micros := parseInt64(m["credits_micros"])
	return credentials.Organization{
		ID:      orgID,
		Credits: microsToDecimal(micros).InexactFloat64(),
	}, nil
}

// ── proxy.AuthStore ──────────────────────────────────────────────────────

func (s *RedisStore) ResolveAPIKey(ctx context.Context, token string) (proxy.APIKey, bool, error) {
	m, err := s.rdb.HGetAll(ctx, apiKeyKey(token)).Result()
	if err != nil {
		return proxy.APIKey{}, false, err
	}
	if len(m) == 0 {
		return proxy.APIKey{}, false, nil
	}
	return proxy.APIKey{
		ID:        m["id"],
		ProjectID: m["project_id"],
		Active:    m["active"] == "1",
	}, true, nil
}

func (s *RedisStore) GetProject(ctx context.Context, projectID string) (proxy.Project, bool, error) {
	m, err := s.rdb.HGetAll(ctx, projectKey(projectID)).Result()
	if err != nil {
		return proxy.Project{}, false, err
	}
	if len(m) == 0 {
		return proxy.Project{}, false, nil
	}
	return proxy.Project{
		ID:             projectID,
		OrgID:          m["org_id"],
		Mode:           credentials.BillingMode(m["mode"]),
		CachingEnabled: m["caching_enabled"] == "1",
	}, true, nil
}

// RetentionFor implements logworker.RetentionLookup, resolving an
// organization's retention policy from the same org metadata hash. Any
// lookup failure (including a missing org) falls back to full retention —
// the conservative choice, since stripping data silently would be a data
// loss bug rather than a billing one.
func (s *RedisStore) RetentionFor(ctx context.Context, orgID string) datastore.RetentionLevel {
	level, err := s.rdb.HGet(ctx, orgMetaKey(orgID), "retention_level").Result()
	if err != nil || level != string(datastore.RetentionNone) {
		return datastore.RetentionFull
	}
	return datastore.RetentionNone
}

// ── billing.Store ────────────────────────────────────────────────────────

// DebitCredits atomically applies credits -= delta via a single HINCRBY on
// the org hash's micro-credit field, per billing.Store's single-statement
// requirement.
func (s *RedisStore) DebitCredits(ctx context.Context, orgID string, delta decimal.Decimal) error {
	return s.rdb.HIncrBy(ctx, orgMetaKey(orgID), "credits_micros", -decimalToMicros(delta)).Err()
}

func (s *RedisStore) OrgsBelowThreshold(ctx context.Context) ([]billing.Organization, error) {
	ids, err := s.rdb.SMembers(ctx, autoTopupIndexKey).Result()
	if err != nil {
		return nil, err
	}
	var out []billing.Organization
	for _, id := range ids {
		m, err := s.rdb.HGetAll(ctx, orgMetaKey(id)).Result()
		if err != nil || len(m) == 0 || m["auto_topup_enabled"] != "1" {
			continue
		}
		credits := microsToDecimal(parseInt64(m["credits_micros"]))
		threshold := microsToDecimal(parseInt64(m["auto_topup_threshold_micros"]))
		if credits.GreaterThanOrEqual(threshold) {
			continue
		}
		out = append(out, billing.Organization{
			ID:                     id,
			Credits:                credits,
			AutoTopUpEnabled:       m["auto_topup_enabled"] == "1",
			AutoTopUpThreshold:     threshold,
			AutoTopUpAmount:        microsToDecimal(parseInt64(m["auto_topup_amount_micros"])),
			DefaultPaymentMethodID: m["default_payment_method_id"],
			Plan:                   m["plan"],
			ProcessorCustomerID:    m["processor_customer_id"],
		})
	}
	return out, nil
}

func (s *RedisStore) LatestTopUpTransaction(ctx context.Context, orgID string) (billing.Transaction, bool, error) {
	txID, err := s.rdb.Get(ctx, latestTxKey(orgID)).Result()
	if errors.Is(err, redis.Nil) {
		return billing.Transaction{}, false, nil
	}
	if err != nil {
		return billing.Transaction{}, false, err
	}
	m, err := s.rdb.HGetAll(ctx, txKey(txID)).Result()
	if err != nil {
		return billing.Transaction{}, false, err
	}
	if len(m) == 0 {
		return billing.Transaction{}, false, nil
	}
	created, _ := time.Parse(time.RFC3339, m["created_at"])
	return billing.Transaction{
		ID:          txID,
		OrgID:       orgID,
		Status:      billing.TransactionStatus(m["status"]),
		IntentID:    m["intent_id"],
		BaseAmount:  mustDecimal(m["base_amount"]),
		TotalFees:   mustDecimal(m["total_fees"]),
		TotalAmount: mustDecimal(m["total_amount"]),
		CreatedAt:   created,
	}, true, nil
}

func (s *RedisStore) InsertTransaction(ctx context.Context, tx billing.Transaction) error {
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, txKey(tx.ID), map[string]any{
		"org_id":       tx.OrgID,
		"status":       string(tx.Status),
		"intent_id":    tx.IntentID,
		"base_amount":  tx.BaseAmount.String(),
		"total_fees":   tx.TotalFees.String(),
		"total_amount": tx.TotalAmount.String(),
		"created_at":   createdAt.Format(time.RFC3339),
	})
	pipe.Set(ctx, latestTxKey(tx.OrgID), tx.ID, 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) UpdateTransactionStatus(ctx context.Context, txID string, status billing.TransactionStatus) error {
	return s.rdb.HSet(ctx, txKey(txID), "status", string(status)).Err()
}

// ── key helpers ──────────────────────────────────────────────────────────

func apiKeyKey(token string) string                  { return "llmgateway:apikey:" + token }
func projectKey(id string) string                    { return "llmgateway:project:" + id }
func providerKeyKey(orgID, providerID string) string { return "llmgateway:providerkey:" + orgID + ":" + providerID }
func customProviderKeyKey(orgID, name string) string { return "llmgateway:customprovider:" + orgID + ":" + name }
func orgMetaKey(orgID string) string                 { return "llmgateway:org:" + orgID }
func txKey(id string) string                         { return "llmgateway:tx:" + id }
func latestTxKey(orgID string) string                 { return "llmgateway:org:" + orgID + ":latesttx" }

const autoTopupIndexKey = "llmgateway:org:autotopup:index"

func parseInt64(s string) int64 {
	var n int64
	_, _ = fmt.Sscanf(s, "%d", &n)
	return n
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
