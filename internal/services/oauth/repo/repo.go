// Package repo provides postgres access for CRM credentials
package repo

import (
	"context"
	"time"

	"clockrelay/internal/modkit/repokit"
	"clockrelay/internal/platform/store"
)

// Credential is one tenant's CRM OAuth credential
type Credential struct {
	Tenant       string
	AccessToken  string
	RefreshToken string
	InstanceURL  string
	ExpiresAt    *time.Time
	UpdatedAt    time.Time
}

// Repo is the persistence surface for credentials
// Get returns perr.ErrNotFound when the tenant has none
type Repo interface {
	Get(ctx context.Context, tenant string) (Credential, error)
	List(ctx context.Context) ([]Credential, error)
	Upsert(ctx context.Context, c Credential) (Credential, error)
	Delete(ctx context.Context, tenant string) (bool, error)
}

type (
	// PG is a binder that can bind the repo to a Queryer or TxRunner
	PG struct{}
	// queries implements the Repo interface
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder that can bind the repo to a Queryer or TxRunner
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind wires a Queryer to the repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

const columns = `tenant, access_token, refresh_token, instance_url, expires_at, updated_at`

func scanCredential(r store.Row) (Credential, error) {
	var c Credential
	err := r.Scan(&c.Tenant, &c.AccessToken, &c.RefreshToken, &c.InstanceURL, &c.ExpiresAt, &c.UpdatedAt)
	return c, err
}

func (r *queries) Get(ctx context.Context, tenant string) (Credential, error) {
	return store.One(ctx, r.q, scanCredential,
		`select `+columns+` from crm_credentials where tenant = $1`, tenant)
}

func (r *queries) List(ctx context.Context) ([]Credential, error) {
	return store.Many(ctx, r.q, scanCredential,
		`select `+columns+` from crm_credentials order by tenant asc`)
}

// Upsert keeps the stored refresh token when c carries none
func (r *queries) Upsert(ctx context.Context, c Credential) (Credential, error) {
	const sql = `
insert into crm_credentials (tenant, access_token, refresh_token, instance_url, expires_at, updated_at)
values ($1, $2, $3, $4, $5, now())
on conflict (tenant) do update set
	access_token  = excluded.access_token,
	refresh_token = coalesce(nullif(excluded.refresh_token, ''), crm_credentials.refresh_token),
	instance_url  = excluded.instance_url,
	expires_at    = excluded.expires_at,
	updated_at    = now()
returning ` + columns
	return store.One(ctx, r.q, scanCredential, sql,
		c.Tenant, c.AccessToken, c.RefreshToken, c.InstanceURL, c.ExpiresAt)
}

func (r *queries) Delete(ctx context.Context, tenant string) (bool, error) {
	tag, err := r.q.Exec(ctx, `delete from crm_credentials where tenant = $1`, tenant)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// EnsureSchema creates the credentials table when missing
func EnsureSchema(ctx context.Context, q repokit.Queryer) error {
	_, err := q.Exec(ctx, `
		create table if not exists crm_credentials (
			tenant        text primary key,
			access_token  text not null,
			refresh_token text not null default '',
			instance_url  text not null,
			expires_at    timestamptz,
			updated_at    timestamptz not null default now()
		)
	`)
	return err
}
