package shareddb

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/homeport/provisioner/internal/domain/provision"
)

// mongoUserExistsCode is the substring MongoDB's createUser returns in its
// error message when the user already exists (server error code 51003).
// The upstream driver does not expose this as a typed, structured code, so
// matching the substring is the only discrimination available. This is a
// known wart, preserved intentionally rather than "fixed" by guessing at a
// structured alternative that may not exist on every server version.
const mongoUserExistsCode = "51003"

// MongoDBConfig describes the shared MongoDB cluster this driver
// administers.
type MongoDBConfig struct {
	PrivateAddress string
	PublicAddress  string
}

// MongoDB is the shared-cluster MongoDB driver.
type MongoDB struct {
	client *mongo.Client
	cfg    MongoDBConfig
}

// NewMongoDB wraps an already-connected *mongo.Client.
func NewMongoDB(client *mongo.Client, cfg MongoDBConfig) *MongoDB {
	return &MongoDB{client: client, cfg: cfg}
}

// Provision creates (or rotates the password of) the MongoDB user for
// project and returns the connection tuple.
func (m *MongoDB) Provision(ctx context.Context, project string) (provision.DatabaseInfo, error) {
	username := provision.MongoUser(project)
	dbName := provision.MongoDatabase(project)

	password, err := provision.GeneratePassword()
	if err != nil {
		return provision.DatabaseInfo{}, provision.Wrap(provision.KindUnexpectedMongo, err)
	}

	db := m.client.Database(dbName)

	createCmd := bson.D{
		{Key: "createUser", Value: username},
		{Key: "pwd", Value: password},
		{Key: "roles", Value: bson.A{
			bson.D{{Key: "role", Value: "readWrite"}, {Key: "db", Value: dbName}},
		}},
	}

	err = db.RunCommand(ctx, createCmd).Err()
	if err != nil {
		if strings.Contains(err.Error(), mongoUserExistsCode) {
			updateCmd := bson.D{
				{Key: "updateUser", Value: username},
				{Key: "pwd", Value: password},
			}
			if err := db.RunCommand(ctx, updateCmd).Err(); err != nil {
				return provision.DatabaseInfo{}, provision.Wrap(provision.KindUpdateRole, err)
			}
		} else {
			return provision.DatabaseInfo{}, provision.Wrap(provision.KindCreateRole, err)
		}
	}

	return provision.DatabaseInfo{
		Engine:        string(provision.EngineMongoDB),
		Username:      username,
		Password:      password,
		DatabaseName:  dbName,
		Address:       m.cfg.PrivateAddress,
		PublicAddress: m.cfg.PublicAddress,
		Port:          provision.EngineMongoDB.Port(),
	}, nil
}

// Delete removes every user from the project's database, then drops the
// database. Users must be dropped first: dropping a MongoDB database does
// not cascade to its users.
func (m *MongoDB) Delete(ctx context.Context, project string) error {
	dbName := provision.MongoDatabase(project)
	db := m.client.Database(dbName)

	dropUsersCmd := bson.D{{Key: "dropAllUsersFromDatabase", Value: 1}}
	if err := db.RunCommand(ctx, dropUsersCmd).Err(); err != nil {
		return provision.Wrap(provision.KindDeleteRole, fmt.Errorf("drop users from %s: %w", dbName, err))
	}

	if err := db.Drop(ctx); err != nil {
		return provision.Wrap(provision.KindDeleteDB, fmt.Errorf("drop database %s: %w", dbName, err))
	}

	return nil
}
