// Package rdsprovision implements the create-or-rotate lifecycle for
// dedicated AWS RDS instances, with status polling.
package rdsprovision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdsTypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/homeport/provisioner/internal/domain/provision"
)

const (
	instanceClass   = "db.t4g.micro"
	allocatedGiB    = 20
	backupRetention = 0
	subnetGroupName = "shuttle_rds"
	masterUsername  = "master"

	statusResettingCreds = "resetting-master-credentials"
	statusCreating       = "creating"
	statusAvailable      = "available"

	pollInterval = time.Second
)

// API is the subset of the RDS client this driver calls. *rds.Client
// satisfies it.
type API interface {
	CreateDBInstance(ctx context.Context, params *rds.CreateDBInstanceInput, optFns ...func(*rds.Options)) (*rds.CreateDBInstanceOutput, error)
	ModifyDBInstance(ctx context.Context, params *rds.ModifyDBInstanceInput, optFns ...func(*rds.Options)) (*rds.ModifyDBInstanceOutput, error)
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	DeleteDBInstance(ctx context.Context, params *rds.DeleteDBInstanceInput, optFns ...func(*rds.Options)) (*rds.DeleteDBInstanceOutput, error)
}

// Driver provisions and releases dedicated RDS instances via the AWS SDK.
type Driver struct {
	client API
}

// New wraps an RDS client.
func New(client API) *Driver {
	return &Driver{client: client}
}

// Provision runs the modify-then-create-on-not-found lifecycle described in
// the design notes: modifying an existing instance's master password is
// attempted first; only when that fails with DBInstanceNotFoundFault is a
// new instance created. Either path ends by polling until the instance
// reaches status "available".
func (d *Driver) Provision(ctx context.Context, project string, engine provision.Engine) (provision.DatabaseInfo, error) {
	instanceID := provision.RDSInstanceID(project, engine)

	password, err := provision.GeneratePassword()
	if err != nil {
		return provision.DatabaseInfo{}, provision.Wrap(provision.KindCreateRDSInstance, err)
	}

	_, err = d.client.ModifyDBInstance(ctx, &rds.ModifyDBInstanceInput{
		DBInstanceIdentifier: aws.String(instanceID),
		MasterUserPassword:   aws.String(password),
	})
	switch {
	case err == nil:
		if err := d.waitFor(ctx, instanceID, statusResettingCreds); err != nil {
			return provision.DatabaseInfo{}, err
		}
	case isNotFound(err):
		if err := d.create(ctx, instanceID, engine, password); err != nil {
			return provision.DatabaseInfo{}, err
		}
		if err := d.waitFor(ctx, instanceID, statusCreating); err != nil {
			return provision.DatabaseInfo{}, err
		}
	default:
		return provision.DatabaseInfo{}, provision.Plain(err.Error())
	}

	if err := d.waitFor(ctx, instanceID, statusAvailable); err != nil {
		return provision.DatabaseInfo{}, err
	}

	desc, err := d.describe(ctx, instanceID)
	if err != nil {
		return provision.DatabaseInfo{}, err
	}

	address := aws.ToString(desc.Endpoint.Address)

	return provision.DatabaseInfo{
		Engine:        string(engine),
		Username:      masterUsername,
		Password:      password,
		DatabaseName:  engine.RDSName(),
		Address:       address,
		PublicAddress: address,
		Port:          engine.Port(),
	}, nil
}

func (d *Driver) create(ctx context.Context, instanceID string, engine provision.Engine, password string) error {
	_, err := d.client.CreateDBInstance(ctx, &rds.CreateDBInstanceInput{
		DBInstanceIdentifier: aws.String(instanceID),
		Engine:               aws.String(string(engine)),
		DBInstanceClass:      aws.String(instanceClass),
		MasterUsername:       aws.String(masterUsername),
		MasterUserPassword:   aws.String(password),
		AllocatedStorage:     aws.Int32(allocatedGiB),
		BackupRetentionPeriod: aws.Int32(backupRetention),
		PubliclyAccessible:   aws.Bool(true),
		DBName:               aws.String(engine.RDSName()),
		DBSubnetGroupName:    aws.String(subnetGroupName),
	})
	if err != nil {
		return provision.Wrap(provision.KindCreateRDSInstance, err)
	}
	return nil
}

// Delete removes the RDS instance for project. DBInstanceNotFoundFault is
// swallowed (idempotent); any other error is fatal.
func (d *Driver) Delete(ctx context.Context, project string, engine provision.Engine) error {
	instanceID := provision.RDSInstanceID(project, engine)

	_, err := d.client.DeleteDBInstance(ctx, &rds.DeleteDBInstanceInput{
		DBInstanceIdentifier: aws.String(instanceID),
		SkipFinalSnapshot:    aws.Bool(true),
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return provision.Plain(err.Error())
	}
	return nil
}

// waitFor polls DescribeDBInstances once a second, indefinitely, until the
// instance's status equals want. There is no timeout and no back-off, a
// deliberate simplification; production deployments are expected to bound
// this externally via the caller's own deadline.
func (d *Driver) waitFor(ctx context.Context, instanceID, want string) error {
	for {
		desc, err := d.describe(ctx, instanceID)
		if err != nil {
			return err
		}
		if desc.DBInstanceStatus == nil {
			// A missing status field on a described instance is a
			// programmer error: AWS always populates it.
			panic("rds: DescribeDBInstances returned an instance with no status")
		}
		if *desc.DBInstanceStatus == want {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (d *Driver) describe(ctx context.Context, instanceID string) (rdsTypes.DBInstance, error) {
	out, err := d.client.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: aws.String(instanceID),
	})
	if err != nil {
		return rdsTypes.DBInstance{}, provision.Wrap(provision.KindDescribeRDSInstance, err)
	}
	if len(out.DBInstances) == 0 {
		return rdsTypes.DBInstance{}, provision.Wrap(provision.KindDescribeRDSInstance, fmt.Errorf("no instances returned for %s", instanceID))
	}
	return out.DBInstances[0], nil
}

func isNotFound(err error) bool {
	var notFound *rdsTypes.DBInstanceNotFoundFault
	return errors.As(err, &notFound)
}
