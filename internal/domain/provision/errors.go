package provision

import (
	"errors"
	"fmt"
)

// Kind tags an internal provisioning error with the step that failed. Kinds
// are logged; none of them, except the two wire kinds below, ever cross the
// RPC boundary.
type Kind string

const (
	KindCreateRole         Kind = "create_role"
	KindUpdateRole         Kind = "update_role"
	KindDeleteRole         Kind = "delete_role"
	KindCreateDB           Kind = "create_db"
	KindDeleteDB           Kind = "delete_db"
	KindUnexpectedSQL      Kind = "unexpected_sql"
	KindUnexpectedMongo    Kind = "unexpected_mongodb"
	KindCreateRDSInstance  Kind = "create_rds_instance"
	KindDescribeRDSInstance Kind = "describe_rds_instance"
	KindCreateIAMPolicy    Kind = "create_iam_policy"
	KindDeleteIAMPolicy    Kind = "delete_iam_policy"
	KindCreateIAMUser      Kind = "create_iam_user"
	KindDeleteIAMUser      Kind = "delete_iam_user"
	KindAttachUserPolicy   Kind = "attach_user_policy"
	KindDetachUserPolicy   Kind = "detach_user_policy"
	KindCreateAccessKey    Kind = "create_access_key"
	KindDeleteAccessKey    Kind = "delete_access_key"
	KindGetAccessKeyID     Kind = "get_access_key_id"
	KindGetSecretAccessKey Kind = "get_secret_access_key"
	KindGetCallerIdentity  Kind = "get_caller_identity"
	KindGetAccount         Kind = "get_account"
	KindGetRegion          Kind = "get_region"
	KindDeleteDynamoDBTable Kind = "delete_dynamodb_table"
	KindPlain              Kind = "plain"

	// KindPermissionDenied and KindProvisionFailed are the only two kinds a
	// caller ever observes on the wire. KindInternal covers the other
	// programmer-error case the facade can hit before dispatching to a
	// driver at all (a missing claim).
	KindPermissionDenied Kind = "permission_denied"
	KindProvisionFailed  Kind = "provision_failed"
	KindInternal         Kind = "internal"
)

var (
	errMissingClaim = errors.New("no claim present on request context")
	errMissingScope = errors.New("claim does not carry the resources:write scope")
)

// Error is the internal error type every driver and the app-layer facade
// use to carry a Kind alongside the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s", e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap builds an *Error of the given kind wrapping err. It returns nil if
// err is nil, so it composes naturally at call sites:
//
//	if err := pool.Ping(ctx); err != nil {
//	    return provision.Wrap(provision.KindUnexpectedSQL, err)
//	}
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Plain builds a KindPlain *Error from a bare message, mirroring the
// upstream SDK's practice of surfacing an unclassified failure message
// verbatim rather than inventing a kind for it.
func Plain(msg string) error {
	return &Error{Kind: KindPlain, Err: errors.New(msg)}
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// IsPermissionDenied reports whether err is a permission-denied failure.
func IsPermissionDenied(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindPermissionDenied
}
