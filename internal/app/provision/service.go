// Package provision is the RPC facade: it verifies claims, dispatches
// provisioning requests to the shared-DB, RDS, and DynamoDB drivers, and
// collapses every driver failure into the single opaque status a caller is
// allowed to see.
package provision

import (
	"context"
	"fmt"

	"github.com/homeport/provisioner/internal/domain/provision"
	"github.com/homeport/provisioner/internal/infrastructure/provision/dynamoprovision"
	"github.com/homeport/provisioner/internal/infrastructure/provision/rdsprovision"
	"github.com/homeport/provisioner/internal/infrastructure/provision/shareddb"
	"github.com/homeport/provisioner/internal/pkg/logger"
)

// Service implements the five provisioning operations behind the RPC facade.
type Service struct {
	postgres *shareddb.Postgres
	mongodb  *shareddb.MongoDB
	rds      *rdsprovision.Driver
	dynamo   *dynamoprovision.Orchestrator
}

// New wires the facade to its drivers. Any driver may be nil if the
// deployment does not support that resource class; a request routed to a
// nil driver fails as an internal error rather than panicking.
func New(postgres *shareddb.Postgres, mongodb *shareddb.MongoDB, rds *rdsprovision.Driver, dynamo *dynamoprovision.Orchestrator) *Service {
	return &Service{postgres: postgres, mongodb: mongodb, rds: rds, dynamo: dynamo}
}

// ProvisionDatabase handles provision_database: verify the claim, dispatch
// to the shared-DB or RDS driver depending on the request's resource class.
func (s *Service) ProvisionDatabase(ctx context.Context, req provision.DatabaseRequest) (provision.DatabaseInfo, error) {
	if err := provision.RequireResourcesWrite(ctx); err != nil {
		return provision.DatabaseInfo{}, err
	}

	info, err := s.provisionDatabase(ctx, req)
	if err != nil {
		return provision.DatabaseInfo{}, s.fail(err)
	}
	return info, nil
}

func (s *Service) provisionDatabase(ctx context.Context, req provision.DatabaseRequest) (provision.DatabaseInfo, error) {
	switch req.Class {
	case provision.ResourceShared:
		switch req.Engine {
		case provision.EnginePostgres:
			if s.postgres == nil {
				return provision.DatabaseInfo{}, errDriverUnconfigured("shared postgres")
			}
			return s.postgres.Provision(ctx, req.ProjectName)
		case provision.EngineMongoDB:
			if s.mongodb == nil {
				return provision.DatabaseInfo{}, errDriverUnconfigured("shared mongodb")
			}
			return s.mongodb.Provision(ctx, req.ProjectName)
		default:
			panic("provision: shared database request missing a recognized engine")
		}
	case provision.ResourceAwsRds:
		switch req.Engine {
		case provision.EnginePostgres, provision.EngineMySQL, provision.EngineMariaDB:
			if s.rds == nil {
				return provision.DatabaseInfo{}, errDriverUnconfigured("rds")
			}
			return s.rds.Provision(ctx, req.ProjectName, req.Engine)
		default:
			panic("provision: RDS request missing a recognized engine")
		}
	default:
		panic("provision: database request missing a recognized resource class")
	}
}

// DeleteDatabase handles delete_database.
func (s *Service) DeleteDatabase(ctx context.Context, req provision.DatabaseRequest) error {
	if err := provision.RequireResourcesWrite(ctx); err != nil {
		return err
	}

	if err := s.deleteDatabase(ctx, req); err != nil {
		return s.fail(err)
	}
	return nil
}

func (s *Service) deleteDatabase(ctx context.Context, req provision.DatabaseRequest) error {
	switch req.Class {
	case provision.ResourceShared:
		switch req.Engine {
		case provision.EnginePostgres:
			if s.postgres == nil {
				return errDriverUnconfigured("shared postgres")
			}
			return s.postgres.Delete(ctx, req.ProjectName)
		case provision.EngineMongoDB:
			if s.mongodb == nil {
				return errDriverUnconfigured("shared mongodb")
			}
			return s.mongodb.Delete(ctx, req.ProjectName)
		default:
			panic("provision: shared database request missing a recognized engine")
		}
	case provision.ResourceAwsRds:
		switch req.Engine {
		case provision.EnginePostgres, provision.EngineMySQL, provision.EngineMariaDB:
			if s.rds == nil {
				return errDriverUnconfigured("rds")
			}
			return s.rds.Delete(ctx, req.ProjectName, req.Engine)
		default:
			panic("provision: RDS request missing a recognized engine")
		}
	default:
		panic("provision: database request missing a recognized resource class")
	}
}

// errDriverUnconfigured marks a request routed to a driver this deployment
// never configured. It surfaces as the usual opaque wire status.
func errDriverUnconfigured(driver string) error {
	return provision.Plain(fmt.Sprintf("%s driver is not configured", driver))
}

// ProvisionDynamoDB handles provision_dynamo_db.
func (s *Service) ProvisionDynamoDB(ctx context.Context, req provision.DynamoDBRequest) (provision.DynamoDBInfo, error) {
	if err := provision.RequireResourcesWrite(ctx); err != nil {
		return provision.DynamoDBInfo{}, err
	}

	if s.dynamo == nil {
		return provision.DynamoDBInfo{}, s.fail(errDriverUnconfigured("dynamodb"))
	}

	info, err := s.dynamo.Provision(ctx, req.ProjectName)
	if err != nil {
		return provision.DynamoDBInfo{}, s.fail(err)
	}
	return info, nil
}

// DeleteDynamoDB handles delete_dynamo_db.
func (s *Service) DeleteDynamoDB(ctx context.Context, req provision.DynamoDBRequest) error {
	if err := provision.RequireResourcesWrite(ctx); err != nil {
		return err
	}

	if s.dynamo == nil {
		return s.fail(errDriverUnconfigured("dynamodb"))
	}

	if err := s.dynamo.Delete(ctx, req.ProjectName); err != nil {
		return s.fail(err)
	}
	return nil
}

// HealthCheck handles health_check. It requires no claim and never fails.
func (s *Service) HealthCheck(ctx context.Context) error {
	return nil
}

// fail logs the detailed internal error and returns the single opaque
// status a caller is allowed to observe. Permission-denied errors are the
// one exception: that status crosses the boundary rather than being
// collapsed.
func (s *Service) fail(err error) error {
	if provision.IsPermissionDenied(err) {
		return err
	}

	kind, _ := provision.KindOf(err)
	logger.Default().Error("provision failed", "error", err, "kind", kind)
	return &provision.Error{Kind: provision.KindProvisionFailed, Err: err}
}
