package provision

import (
	"context"
	"testing"

	domain "github.com/homeport/provisioner/internal/domain/provision"
)

func TestProvisionDatabaseRequiresClaim(t *testing.T) {
	svc := New(nil, nil, nil, nil)

	_, err := svc.ProvisionDatabase(context.Background(), domain.DatabaseRequest{
		ProjectName: "acme",
		Class:       domain.ResourceShared,
		Engine:      domain.EnginePostgres,
	})
	if err == nil {
		t.Fatal("expected an error with no claim on the context")
	}
	if kind, ok := domain.KindOf(err); !ok || kind != domain.KindInternal {
		t.Errorf("KindOf(err) = (%v, %v), want (%v, true)", kind, ok, domain.KindInternal)
	}
}

func TestProvisionDatabaseRequiresScope(t *testing.T) {
	svc := New(nil, nil, nil, nil)
	ctx := domain.ContextWithClaim(context.Background(), domain.NewClaim())

	_, err := svc.ProvisionDatabase(ctx, domain.DatabaseRequest{
		ProjectName: "acme",
		Class:       domain.ResourceShared,
		Engine:      domain.EnginePostgres,
	})
	if err == nil {
		t.Fatal("expected an error when the claim lacks resources:write")
	}
	if !domain.IsPermissionDenied(err) {
		t.Errorf("expected a permission-denied error, got %v", err)
	}
}

func TestDeleteDynamoDBRequiresClaim(t *testing.T) {
	svc := New(nil, nil, nil, nil)

	err := svc.DeleteDynamoDB(context.Background(), domain.DynamoDBRequest{ProjectName: "acme"})
	if err == nil {
		t.Fatal("expected an error with no claim on the context")
	}
	if kind, ok := domain.KindOf(err); !ok || kind != domain.KindInternal {
		t.Errorf("KindOf(err) = (%v, %v), want (%v, true)", kind, ok, domain.KindInternal)
	}
}

func TestProvisionDatabaseNilDriverFailsOpaque(t *testing.T) {
	svc := New(nil, nil, nil, nil)
	ctx := domain.ContextWithClaim(context.Background(), domain.NewClaim(domain.ResourcesWrite))

	_, err := svc.ProvisionDatabase(ctx, domain.DatabaseRequest{
		ProjectName: "acme",
		Class:       domain.ResourceShared,
		Engine:      domain.EnginePostgres,
	})
	if err == nil {
		t.Fatal("expected an error when the target driver is not configured")
	}
	if kind, ok := domain.KindOf(err); !ok || kind != domain.KindProvisionFailed {
		t.Errorf("KindOf(err) = (%v, %v), want (%v, true)", kind, ok, domain.KindProvisionFailed)
	}
}

func TestProvisionDynamoDBNilDriverFailsOpaque(t *testing.T) {
	svc := New(nil, nil, nil, nil)
	ctx := domain.ContextWithClaim(context.Background(), domain.NewClaim(domain.ResourcesWrite))

	_, err := svc.ProvisionDynamoDB(ctx, domain.DynamoDBRequest{ProjectName: "acme"})
	if err == nil {
		t.Fatal("expected an error when the dynamodb driver is not configured")
	}
	if kind, ok := domain.KindOf(err); !ok || kind != domain.KindProvisionFailed {
		t.Errorf("KindOf(err) = (%v, %v), want (%v, true)", kind, ok, domain.KindProvisionFailed)
	}
}

func TestHealthCheckRequiresNoClaim(t *testing.T) {
	svc := New(nil, nil, nil, nil)
	if err := svc.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() = %v, want nil even with no claim on the context", err)
	}
}

func TestFailCollapsesToProvisionFailed(t *testing.T) {
	svc := New(nil, nil, nil, nil)
	cause := domain.Wrap(domain.KindCreateDB, context.DeadlineExceeded)

	got := svc.fail(cause)
	if kind, ok := domain.KindOf(got); !ok || kind != domain.KindProvisionFailed {
		t.Errorf("fail() kind = (%v, %v), want (%v, true)", kind, ok, domain.KindProvisionFailed)
	}
}

func TestFailPassesThroughPermissionDenied(t *testing.T) {
	svc := New(nil, nil, nil, nil)
	cause := &domain.Error{Kind: domain.KindPermissionDenied}

	got := svc.fail(cause)
	if got != error(cause) {
		t.Errorf("fail() = %v, want the original permission-denied error unchanged", got)
	}
}

func TestProvisionDatabaseUnrecognizedEnginePanics(t *testing.T) {
	svc := New(nil, nil, nil, nil)
	ctx := domain.ContextWithClaim(context.Background(), domain.NewClaim(domain.ResourcesWrite))

	defer func() {
		if recover() == nil {
			t.Error("expected a panic for a shared-database request with an unrecognized engine")
		}
	}()

	_, _ = svc.ProvisionDatabase(ctx, domain.DatabaseRequest{
		ProjectName: "acme",
		Class:       domain.ResourceShared,
		Engine:      domain.Engine("unknown"),
	})
}
