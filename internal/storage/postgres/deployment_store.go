package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

// DeploymentStore implements storage.DeploymentStore using PostgreSQL.
type DeploymentStore struct {
	pool *Pool
}

// NewDeploymentStore creates a new DeploymentStore.
func NewDeploymentStore(pool *Pool) *DeploymentStore {
	return &DeploymentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DeploymentStore = (*DeploymentStore)(nil)

const deploymentColumns = `
	ledger_id, creator, name, symbol, decimals, max_supply::text, mint_authority, created_at
`

// Insert adds a new deployment. Returns ErrDuplicateKey if ledger_id exists.
func (s *DeploymentStore) Insert(ctx context.Context, d *domain.Deployment) error {
	query := `
		INSERT INTO deployments (
			ledger_id, creator, name, symbol, decimals, max_supply, mint_authority, created_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		d.LedgerID,
		d.Creator,
		d.Name,
		d.Symbol,
		int16(d.Decimals),
		formatU64(d.MaxSupply),
		d.MintAuthority,
		d.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert deployment: %w", err)
	}
	return nil
}

// GetByID retrieves a deployment by ledger id. Returns ErrNotFound if not exists.
func (s *DeploymentStore) GetByID(ctx context.Context, ledgerID string) (*domain.Deployment, error) {
	query := `
		SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE ledger_id = $1
	`

	row := s.pool.QueryRow(ctx, query, ledgerID)
	d, err := scanDeployment(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get deployment by id: %w", err)
	}
	return d, nil
}

// GetByCreator retrieves all deployments for a creator, in creation order.
func (s *DeploymentStore) GetByCreator(ctx context.Context, creator string) ([]*domain.Deployment, error) {
	query := `
		SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE creator = $1
		ORDER BY created_at ASC, ledger_id ASC
	`

	rows, err := s.pool.Query(ctx, query, creator)
	if err != nil {
		return nil, fmt.Errorf("get deployments by creator: %w", err)
	}
	defer rows.Close()

	return scanDeployments(rows)
}

// GetAll retrieves every deployment, in creation order.
func (s *DeploymentStore) GetAll(ctx context.Context) ([]*domain.Deployment, error) {
	query := `
		SELECT ` + deploymentColumns + `
		FROM deployments
		ORDER BY created_at ASC, ledger_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all deployments: %w", err)
	}
	defer rows.Close()

	return scanDeployments(rows)
}

// Count returns the total number of deployments.
func (s *DeploymentStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deployments`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count deployments: %w", err)
	}
	return count, nil
}

// scanDeployment scans a single row into a Deployment.
func scanDeployment(row pgx.Row) (*domain.Deployment, error) {
	var d domain.Deployment
	var decimals int16
	var maxSupply string

	err := row.Scan(
		&d.LedgerID,
		&d.Creator,
		&d.Name,
		&d.Symbol,
		&decimals,
		&maxSupply,
		&d.MintAuthority,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Decimals = uint8(decimals)
	d.MaxSupply, err = parseU64(maxSupply)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// scanDeployments scans multiple rows into a slice of Deployment.
func scanDeployments(rows pgx.Rows) ([]*domain.Deployment, error) {
	var deployments []*domain.Deployment

	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deployment row: %w", err)
		}
		deployments = append(deployments, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployment rows: %w", err)
	}

	return deployments, nil
}
