// Package provision defines the core domain types for the resource
// provisioner: derived names, claims/scopes, and the provisioning request
// and error taxonomy shared by the infrastructure drivers and the app-layer
// facade.
package provision

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Engine identifies the underlying database engine for a provisioning
// request.
type Engine string

const (
	EnginePostgres Engine = "postgres"
	EngineMySQL    Engine = "mysql"
	EngineMariaDB  Engine = "mariadb"
	EngineMongoDB  Engine = "mongodb"
)

// Port returns the default listener port for the engine.
func (e Engine) Port() int {
	switch e {
	case EnginePostgres:
		return 5432
	case EngineMySQL, EngineMariaDB:
		return 3306
	case EngineMongoDB:
		return 27017
	default:
		return 0
	}
}

// RDSName returns the database-name AWS expects on a CreateDBInstance call
// for this engine. MySQL is the one exception: RDS rejects "mysql" as a
// database name, so the instance's default schema is named "msql" instead.
func (e Engine) RDSName() string {
	if e == EngineMySQL {
		return "msql"
	}
	return string(e)
}

// Role returns the Postgres role name derived from a project name.
func Role(project string) string {
	return fmt.Sprintf("user-%s", project)
}

// Database returns the shared-Postgres database name derived from a project
// name.
func Database(project string) string {
	return fmt.Sprintf("db-%s", project)
}

// MongoUser returns the MongoDB user name derived from a project name.
func MongoUser(project string) string {
	return fmt.Sprintf("user-%s", project)
}

// MongoDatabase returns the MongoDB database name derived from a project
// name.
func MongoDatabase(project string) string {
	return fmt.Sprintf("mongodb-%s", project)
}

// RDSInstanceID returns the RDS instance identifier derived from a project
// name and engine.
func RDSInstanceID(project string, engine Engine) string {
	return fmt.Sprintf("%s-%s", project, engine)
}

// Prefix derives the DynamoDB/IAM resource prefix for a project: the
// URL-safe, unpadded base64 encoding of the project name's SHA-256 digest.
// It is 43 ASCII characters long and is deterministic across calls, which is
// what makes every DynamoDB/IAM operation in this package idempotent.
func Prefix(project string) string {
	sum := sha256.Sum256([]byte(project))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// DynamoUserName returns the IAM user name for a project's DynamoDB prefix.
func DynamoUserName(prefix string) string {
	return fmt.Sprintf("%s-dynamo-user", prefix)
}

// DynamoPolicyName returns the IAM policy name for a project's DynamoDB
// prefix.
func DynamoPolicyName(prefix string) string {
	return fmt.Sprintf("%s-dynamo-policy", prefix)
}
