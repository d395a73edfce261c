package provision

import "testing"

func TestEnginePort(t *testing.T) {
	tests := []struct {
		engine   Engine
		expected int
	}{
		{EnginePostgres, 5432},
		{EngineMySQL, 3306},
		{EngineMariaDB, 3306},
		{EngineMongoDB, 27017},
		{Engine("unknown"), 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.engine), func(t *testing.T) {
			if got := tt.engine.Port(); got != tt.expected {
				t.Errorf("Engine(%q).Port() = %d, expected %d", tt.engine, got, tt.expected)
			}
		})
	}
}

func TestEngineRDSName(t *testing.T) {
	tests := []struct {
		engine   Engine
		expected string
	}{
		{EnginePostgres, "postgres"},
		{EngineMySQL, "msql"},
		{EngineMariaDB, "mariadb"},
	}

	for _, tt := range tests {
		t.Run(string(tt.engine), func(t *testing.T) {
			if got := tt.engine.RDSName(); got != tt.expected {
				t.Errorf("Engine(%q).RDSName() = %q, expected %q", tt.engine, got, tt.expected)
			}
		})
	}
}

func TestDerivedNames(t *testing.T) {
	const project = "acme"

	if got, want := Role(project), "user-acme"; got != want {
		t.Errorf("Role(%q) = %q, want %q", project, got, want)
	}
	if got, want := Database(project), "db-acme"; got != want {
		t.Errorf("Database(%q) = %q, want %q", project, got, want)
	}
	if got, want := MongoUser(project), "user-acme"; got != want {
		t.Errorf("MongoUser(%q) = %q, want %q", project, got, want)
	}
	if got, want := MongoDatabase(project), "mongodb-acme"; got != want {
		t.Errorf("MongoDatabase(%q) = %q, want %q", project, got, want)
	}
	if got, want := RDSInstanceID(project, EnginePostgres), "acme-postgres"; got != want {
		t.Errorf("RDSInstanceID(%q, postgres) = %q, want %q", project, got, want)
	}
	if got, want := RDSInstanceID(project, EngineMySQL), "acme-mysql"; got != want {
		t.Errorf("RDSInstanceID(%q, mysql) = %q, want %q", project, got, want)
	}
}

// TestPrefixFixture pins the prefix derivation against the known fixture
// value for "hello", so a change to the hash or encoding is caught here
// rather than downstream in the DynamoDB orchestrator.
func TestPrefixFixture(t *testing.T) {
	const want = "LPJNul-wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ"
	if got := Prefix("hello"); got != want {
		t.Errorf("Prefix(%q) = %q, want %q", "hello", got, want)
	}
}

func TestPrefixDeterministic(t *testing.T) {
	if Prefix("acme") != Prefix("acme") {
		t.Error("Prefix is not deterministic across calls")
	}
	if Prefix("acme") == Prefix("other") {
		t.Error("Prefix collided for distinct project names")
	}
}

func TestDynamoNames(t *testing.T) {
	prefix := Prefix("acme")

	if got, want := DynamoUserName(prefix), prefix+"-dynamo-user"; got != want {
		t.Errorf("DynamoUserName = %q, want %q", got, want)
	}
	if got, want := DynamoPolicyName(prefix), prefix+"-dynamo-policy"; got != want {
		t.Errorf("DynamoPolicyName = %q, want %q", got, want)
	}
}
