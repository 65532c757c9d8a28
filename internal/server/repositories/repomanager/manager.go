package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/showroom/internal/dbx"
	"github.com/dmitrijs2005/showroom/internal/server/repositories/accesslog"
	"github.com/dmitrijs2005/showroom/internal/server/repositories/associations"
	"github.com/dmitrijs2005/showroom/internal/server/repositories/projects"
	"github.com/dmitrijs2005/showroom/internal/server/repositories/shares"
)

// RepositoryManager vends repositories bound to either the pool or a
// transaction, so services can compose several repositories in one tx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Shares(db dbx.DBTX) shares.Repository
	Associations(db dbx.DBTX) associations.Repository
	AccessLog(db dbx.DBTX) accesslog.Repository
	Projects(db dbx.DBTX) projects.Repository
}
