package provision

import (
	"context"
	"testing"
)

func TestRequireResourcesWriteNoClaim(t *testing.T) {
	err := RequireResourcesWrite(context.Background())
	if err == nil {
		t.Fatal("expected an error when no claim is present")
	}
	kind, ok := KindOf(err)
	if !ok || kind != KindInternal {
		t.Errorf("KindOf(err) = (%v, %v), want (%v, true)", kind, ok, KindInternal)
	}
}

func TestRequireResourcesWriteMissingScope(t *testing.T) {
	ctx := ContextWithClaim(context.Background(), NewClaim())
	err := RequireResourcesWrite(ctx)
	if err == nil {
		t.Fatal("expected an error when claim lacks resources:write")
	}
	kind, ok := KindOf(err)
	if !ok || kind != KindPermissionDenied {
		t.Errorf("KindOf(err) = (%v, %v), want (%v, true)", kind, ok, KindPermissionDenied)
	}
}

func TestRequireResourcesWriteGranted(t *testing.T) {
	ctx := ContextWithClaim(context.Background(), NewClaim(ResourcesWrite))
	if err := RequireResourcesWrite(ctx); err != nil {
		t.Errorf("RequireResourcesWrite() = %v, want nil", err)
	}
}

func TestClaimHas(t *testing.T) {
	var zero Claim
	if zero.Has(ResourcesWrite) {
		t.Error("zero-value Claim should not carry any scope")
	}

	c := NewClaim(ResourcesWrite)
	if !c.Has(ResourcesWrite) {
		t.Error("claim built with ResourcesWrite should carry it")
	}
	if c.Has(Scope("other:scope")) {
		t.Error("claim should not carry an unrequested scope")
	}
}
