package sql

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQL store.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Run migrations
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, rolling back if fn fails.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, created_at, last_used_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt, key.LastUsedAt)
	return wrapUniqueError(err)
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := s.db.GetContext(ctx, &key,
		`SELECT id, name, key_hash, key_prefix, created_at, last_used_at FROM api_keys WHERE key_hash = $1`, keyHash)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &key, err
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	var keys []*domain.APIKey
	err := s.db.SelectContext(ctx, &keys,
		`SELECT id, name, key_hash, key_prefix, created_at, last_used_at FROM api_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM api_keys`)
	return count, err
}

// ============================================
// Networks
// ============================================

func (s *Store) UpsertNetwork(ctx context.Context, network *domain.Network) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO networks (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		network.ID, network.Name)
	return err
}

func (s *Store) GetNetwork(ctx context.Context, id string) (*domain.Network, error) {
	var network domain.Network
	err := s.db.GetContext(ctx, &network, `SELECT id, name FROM networks WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &network, err
}

func (s *Store) ListNetworks(ctx context.Context) ([]*domain.Network, error) {
	var networks []*domain.Network
	err := s.db.SelectContext(ctx, &networks, `SELECT id, name FROM networks ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return networks, nil
}

func (s *Store) DeleteNetwork(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM networks WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return domain.ErrNotFound
		}
		for _, table := range []string{"entities", "tags", "acl_matrices"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE network_id = $1`, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// ============================================
// Entities
// ============================================

type entityRow struct {
	ID             string `db:"id"`
	NetworkID      string `db:"network_id"`
	Kind           string `db:"kind"`
	Tags           string `db:"tags"`
	BoundGatewayID string `db:"bound_gateway_id"`
}

func (r *entityRow) toDomain() (*domain.Entity, error) {
	e := &domain.Entity{
		ID:             r.ID,
		NetworkID:      r.NetworkID,
		Kind:           domain.EntityKind(r.Kind),
		BoundGatewayID: r.BoundGatewayID,
	}
	if err := json.Unmarshal([]byte(r.Tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("decoding entity tags: %w", err)
	}
	return e, nil
}

func (s *Store) ReplaceEntities(ctx context.Context, networkID string, entities []*domain.Entity) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE network_id = $1`, networkID); err != nil {
			return err
		}
		for _, e := range entities {
			tags, err := json.Marshal(e.Tags)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO entities (id, network_id, kind, tags, bound_gateway_id)
				 VALUES ($1, $2, $3, $4, $5)`,
				e.ID, networkID, string(e.Kind), string(tags), e.BoundGatewayID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListEntities(ctx context.Context, networkID string) ([]*domain.Entity, error) {
	var rows []entityRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, network_id, kind, tags, bound_gateway_id FROM entities WHERE network_id = $1 ORDER BY id`, networkID)
	if err != nil {
		return nil, err
	}
	entities := make([]*domain.Entity, 0, len(rows))
	for i := range rows {
		e, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

func (s *Store) GetEntity(ctx context.Context, networkID, id string) (*domain.Entity, error) {
	var row entityRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, network_id, kind, tags, bound_gateway_id FROM entities WHERE network_id = $1 AND id = $2`,
		networkID, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// ============================================
// Tags
// ============================================

func (s *Store) ReplaceTags(ctx context.Context, networkID string, tags []*domain.Tag) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE network_id = $1`, networkID); err != nil {
			return err
		}
		for _, t := range tags {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO tags (id, network_id, display_name) VALUES ($1, $2, $3)`,
				t.ID, networkID, t.DisplayName)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListTags(ctx context.Context, networkID string) ([]*domain.Tag, error) {
	var tags []*domain.Tag
	err := s.db.SelectContext(ctx, &tags,
		`SELECT id, network_id, display_name FROM tags WHERE network_id = $1 ORDER BY id`, networkID)
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// ============================================
// Policy Rules
// ============================================

type ruleRow struct {
	ID            string    `db:"id"`
	NetworkID     string    `db:"network_id"`
	Name          string    `db:"name"`
	PolicyType    string    `db:"policy_type"`
	Enabled       bool      `db:"enabled"`
	SrcSelector   string    `db:"src_selector"`
	DstSelector   string    `db:"dst_selector"`
	Direction     int       `db:"direction"`
	ProtocolName  string    `db:"protocol_name"`
	TransportType string    `db:"transport_type"`
	Ports         string    `db:"ports"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r *ruleRow) toDomain() (*domain.PolicyRule, error) {
	rule := &domain.PolicyRule{
		ID:            r.ID,
		NetworkID:     r.NetworkID,
		Name:          r.Name,
		PolicyType:    domain.PolicyType(r.PolicyType),
		Enabled:       r.Enabled,
		Direction:     domain.TrafficDirection(r.Direction),
		ProtocolName:  r.ProtocolName,
		TransportType: r.TransportType,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.SrcSelector), &rule.SourceSelector); err != nil {
		return nil, fmt.Errorf("decoding source selector: %w", err)
	}
	if err := json.Unmarshal([]byte(r.DstSelector), &rule.DestinationSelector); err != nil {
		return nil, fmt.Errorf("decoding destination selector: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Ports), &rule.Ports); err != nil {
		return nil, fmt.Errorf("decoding ports: %w", err)
	}
	return rule, nil
}

func encodeRule(rule *domain.PolicyRule) (src, dst, ports string, err error) {
	srcJSON, err := json.Marshal(rule.SourceSelector)
	if err != nil {
		return "", "", "", err
	}
	dstJSON, err := json.Marshal(rule.DestinationSelector)
	if err != nil {
		return "", "", "", err
	}
	portsJSON, err := json.Marshal(rule.Ports)
	if err != nil {
		return "", "", "", err
	}
	return string(srcJSON), string(dstJSON), string(portsJSON), nil
}

func (s *Store) CreatePolicyRule(ctx context.Context, rule *domain.PolicyRule) error {
	src, dst, ports, err := encodeRule(rule)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO policy_rules (id, network_id, name, policy_type, enabled, src_selector, dst_selector,
		                           direction, protocol_name, transport_type, ports, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rule.ID, rule.NetworkID, rule.Name, string(rule.PolicyType), rule.Enabled, src, dst,
		int(rule.Direction), rule.ProtocolName, rule.TransportType, ports, rule.CreatedAt, rule.UpdatedAt)
	return wrapUniqueError(err)
}

func (s *Store) GetPolicyRule(ctx context.Context, id string) (*domain.PolicyRule, error) {
	var row ruleRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, network_id, name, policy_type, enabled, src_selector, dst_selector,
		        direction, protocol_name, transport_type, ports, created_at, updated_at
		 FROM policy_rules WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (s *Store) ListPolicyRules(ctx context.Context, networkID string) ([]*domain.PolicyRule, error) {
	var rows []ruleRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, network_id, name, policy_type, enabled, src_selector, dst_selector,
		        direction, protocol_name, transport_type, ports, created_at, updated_at
		 FROM policy_rules WHERE network_id = $1 ORDER BY created_at, id`, networkID)
	if err != nil {
		return nil, err
	}
	rules := make([]*domain.PolicyRule, 0, len(rows))
	for i := range rows {
		rule, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (s *Store) UpdatePolicyRule(ctx context.Context, rule *domain.PolicyRule) error {
	src, dst, ports, err := encodeRule(rule)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE policy_rules
		 SET name = $1, enabled = $2, src_selector = $3, dst_selector = $4, direction = $5,
		     protocol_name = $6, transport_type = $7, ports = $8, updated_at = $9
		 WHERE id = $10`,
		rule.Name, rule.Enabled, src, dst, int(rule.Direction),
		rule.ProtocolName, rule.TransportType, ports, rule.UpdatedAt, rule.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePolicyRule(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM policy_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ============================================
// ACL Matrices
// ============================================

func (s *Store) GetACLMatrix(ctx context.Context, networkID string) (domain.AclMatrix, error) {
	var blob string
	err := s.db.GetContext(ctx, &blob, `SELECT matrix FROM acl_matrices WHERE network_id = $1`, networkID)
	if err == sql.ErrNoRows {
		return domain.AclMatrix{}, nil
	}
	if err != nil {
		return nil, err
	}
	var m domain.AclMatrix
	if err := json.Unmarshal([]byte(blob), &m); err != nil {
		return nil, fmt.Errorf("decoding acl matrix: %w", err)
	}
	return m, nil
}

func (s *Store) PutACLMatrix(ctx context.Context, networkID string, m domain.AclMatrix) error {
	blob, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO acl_matrices (network_id, matrix, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (network_id) DO UPDATE SET matrix = EXCLUDED.matrix, updated_at = EXCLUDED.updated_at`,
		networkID, string(blob), time.Now())
	return err
}

// ============================================
// ACL Versions
// ============================================

func (s *Store) CreateACLVersion(ctx context.Context, version *domain.AclVersion) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO acl_versions (id, network_id, version_number, matrix, submitted_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		version.ID, version.NetworkID, version.VersionNumber, version.Matrix, version.SubmittedBy, version.CreatedAt)
	return wrapUniqueError(err)
}

func (s *Store) GetLatestACLVersion(ctx context.Context, networkID string) (*domain.AclVersion, error) {
	var version domain.AclVersion
	err := s.db.GetContext(ctx, &version,
		`SELECT id, network_id, version_number, matrix, submitted_by, created_at
		 FROM acl_versions WHERE network_id = $1 ORDER BY version_number DESC LIMIT 1`, networkID)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &version, err
}

func (s *Store) ListACLVersions(ctx context.Context, networkID string, limit, offset int) ([]*domain.AclVersion, error) {
	if limit <= 0 {
		limit = 50
	}
	var versions []*domain.AclVersion
	err := s.db.SelectContext(ctx, &versions,
		`SELECT id, network_id, version_number, matrix, submitted_by, created_at
		 FROM acl_versions WHERE network_id = $1 ORDER BY version_number DESC LIMIT $2 OFFSET $3`,
		networkID, limit, offset)
	if err != nil {
		return nil, err
	}
	return versions, nil
}
