package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/folio/internal/dbx"
	"github.com/dmitrijs2005/folio/internal/server/repositories/content"
	"github.com/dmitrijs2005/folio/internal/server/repositories/identities"
	"github.com/dmitrijs2005/folio/internal/server/repositories/orphans"
	"github.com/dmitrijs2005/folio/internal/server/repositories/pageviews"
	"github.com/dmitrijs2005/folio/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/folio/internal/server/repositories/refreshtokens"
)

// RepositoryManager vends repositories bound to a DBTX, so services can use
// the same repository types inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Identities(db dbx.DBTX) identities.Repository
	Profiles(db dbx.DBTX) profiles.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Content(db dbx.DBTX) content.Repository
	Orphans(db dbx.DBTX) orphans.Repository
	PageViews(db dbx.DBTX) pageviews.Repository
}
