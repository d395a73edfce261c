// Package dynamoprovision orchestrates the multi-step IAM policy + user +
// access-key + attachment workflow that grants a tenant a scoped DynamoDB
// environment, plus prefix-scoped table cleanup on deletion.
package dynamoprovision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamTypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/homeport/provisioner/internal/domain/provision"
	"github.com/homeport/provisioner/internal/infrastructure/provision/keystore"
)

// policyActions is the fixed action set granted by the per-tenant DynamoDB
// policy, scoped to every table whose name begins with the tenant's prefix.
var policyActions = []string{
	"dynamodb:BatchGet*",
	"dynamodb:DescribeStream",
	"dynamodb:DescribeTable",
	"dynamodb:Get*",
	"dynamodb:Query",
	"dynamodb:Scan",
	"dynamodb:BatchWrite*",
	"dynamodb:CreateTable",
	"dynamodb:Delete*",
	"dynamodb:Update*",
	"dynamodb:PutItem",
	"dynamodb:List*",
	"dynamodb:DescribeReservedCapacity*",
	"dynamodb:DescribeLimits",
	"dynamodb:DescribeTimeToLive",
}

// IAMAPI is the subset of the IAM client the orchestrator calls. *iam.Client
// satisfies it.
type IAMAPI interface {
	CreatePolicy(ctx context.Context, params *iam.CreatePolicyInput, optFns ...func(*iam.Options)) (*iam.CreatePolicyOutput, error)
	DeletePolicy(ctx context.Context, params *iam.DeletePolicyInput, optFns ...func(*iam.Options)) (*iam.DeletePolicyOutput, error)
	CreateUser(ctx context.Context, params *iam.CreateUserInput, optFns ...func(*iam.Options)) (*iam.CreateUserOutput, error)
	DeleteUser(ctx context.Context, params *iam.DeleteUserInput, optFns ...func(*iam.Options)) (*iam.DeleteUserOutput, error)
	AttachUserPolicy(ctx context.Context, params *iam.AttachUserPolicyInput, optFns ...func(*iam.Options)) (*iam.AttachUserPolicyOutput, error)
	DetachUserPolicy(ctx context.Context, params *iam.DetachUserPolicyInput, optFns ...func(*iam.Options)) (*iam.DetachUserPolicyOutput, error)
	CreateAccessKey(ctx context.Context, params *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error)
	DeleteAccessKey(ctx context.Context, params *iam.DeleteAccessKeyInput, optFns ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error)
}

// STSAPI is the subset of the STS client the orchestrator calls.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// DynamoAPI is the subset of the DynamoDB client the orchestrator calls.
type DynamoAPI interface {
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
}

// Orchestrator drives the IAM/STS/DynamoDB calls and the access-key store.
type Orchestrator struct {
	iam      IAMAPI
	sts      STSAPI
	dynamo   DynamoAPI
	keystore *keystore.Store
	region   string
}

// New builds an Orchestrator. region is the client's resolved default
// region; an empty region is rejected at Provision time with KindGetRegion,
// matching the upstream requirement that the region be known up front.
func New(iamClient IAMAPI, stsClient STSAPI, dynamoClient DynamoAPI, store *keystore.Store, region string) *Orchestrator {
	return &Orchestrator{iam: iamClient, sts: stsClient, dynamo: dynamoClient, keystore: store, region: region}
}

// Provision runs the five-step workflow from the design notes, in strict
// order: create policy, create user, attach policy, obtain/create access
// key, resolve region.
func (o *Orchestrator) Provision(ctx context.Context, project string) (provision.DynamoDBInfo, error) {
	if o.region == "" {
		return provision.DynamoDBInfo{}, provision.Wrap(provision.KindGetRegion, errors.New("no default region configured"))
	}

	prefix := provision.Prefix(project)
	policyName := provision.DynamoPolicyName(prefix)
	userName := provision.DynamoUserName(prefix)

	if err := o.createPolicy(ctx, prefix, policyName); err != nil {
		return provision.DynamoDBInfo{}, err
	}

	if err := o.createUser(ctx, userName); err != nil {
		return provision.DynamoDBInfo{}, err
	}

	policyArn, err := o.policyArn(ctx, policyName)
	if err != nil {
		return provision.DynamoDBInfo{}, err
	}

	if _, err := o.iam.AttachUserPolicy(ctx, &iam.AttachUserPolicyInput{
		UserName:  aws.String(userName),
		PolicyArn: aws.String(policyArn),
	}); err != nil {
		return provision.DynamoDBInfo{}, provision.Wrap(provision.KindAttachUserPolicy, err)
	}

	key, err := o.obtainAccessKey(ctx, prefix, userName)
	if err != nil {
		return provision.DynamoDBInfo{}, err
	}

	return provision.DynamoDBInfo{
		Prefix:          prefix,
		AccessKeyID:     key.ID,
		SecretAccessKey: key.Secret,
		Region:          o.region,
	}, nil
}

func (o *Orchestrator) createPolicy(ctx context.Context, prefix, policyName string) error {
	doc := policyDocument(prefix)
	body, err := json.Marshal(doc)
	if err != nil {
		return provision.Wrap(provision.KindCreateIAMPolicy, err)
	}

	_, err = o.iam.CreatePolicy(ctx, &iam.CreatePolicyInput{
		PolicyName:     aws.String(policyName),
		PolicyDocument: aws.String(string(body)),
	})
	if err != nil && !isEntityAlreadyExists(err) {
		return provision.Wrap(provision.KindCreateIAMPolicy, err)
	}
	return nil
}

func (o *Orchestrator) createUser(ctx context.Context, userName string) error {
	_, err := o.iam.CreateUser(ctx, &iam.CreateUserInput{UserName: aws.String(userName)})
	if err != nil && !isEntityAlreadyExists(err) {
		return provision.Wrap(provision.KindCreateIAMUser, err)
	}
	return nil
}

// policyArn computes the policy's ARN via STS GetCallerIdentity, rather
// than relying on CreatePolicy's return value: CreatePolicy is skipped
// entirely on the idempotent "already exists" path, so the ARN must be
// derivable independently of whether this call created the policy.
func (o *Orchestrator) policyArn(ctx context.Context, policyName string) (string, error) {
	identity, err := o.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", provision.Wrap(provision.KindGetCallerIdentity, err)
	}
	if identity.Account == nil {
		return "", provision.Wrap(provision.KindGetAccount, errors.New("caller identity has no account"))
	}
	return fmt.Sprintf("arn:aws:iam::%s:policy/%s", *identity.Account, policyName), nil
}

func (o *Orchestrator) obtainAccessKey(ctx context.Context, prefix, userName string) (provision.AccessKey, error) {
	if key, ok, err := o.keystore.Load(prefix); err != nil {
		return provision.AccessKey{}, err
	} else if ok {
		return key, nil
	}

	out, err := o.iam.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{UserName: aws.String(userName)})
	if err != nil {
		return provision.AccessKey{}, provision.Wrap(provision.KindCreateAccessKey, err)
	}

	key := provision.AccessKey{
		ID:     aws.ToString(out.AccessKey.AccessKeyId),
		Secret: aws.ToString(out.AccessKey.SecretAccessKey),
	}
	if err := o.keystore.Save(prefix, key); err != nil {
		return provision.AccessKey{}, err
	}
	return key, nil
}

// Delete tears the tenant's DynamoDB environment down in reverse order:
// detach policy, delete access key, delete user, delete policy, then sweep
// every table under the prefix.
func (o *Orchestrator) Delete(ctx context.Context, project string) error {
	prefix := provision.Prefix(project)
	policyName := provision.DynamoPolicyName(prefix)
	userName := provision.DynamoUserName(prefix)

	policyArn, err := o.policyArn(ctx, policyName)
	if err != nil {
		return err
	}

	if _, err := o.iam.DetachUserPolicy(ctx, &iam.DetachUserPolicyInput{
		UserName:  aws.String(userName),
		PolicyArn: aws.String(policyArn),
	}); err != nil {
		return provision.Wrap(provision.KindDetachUserPolicy, err)
	}

	if err := o.deleteAccessKey(ctx, prefix, userName); err != nil {
		return err
	}

	if _, err := o.iam.DeleteUser(ctx, &iam.DeleteUserInput{UserName: aws.String(userName)}); err != nil {
		return provision.Wrap(provision.KindDeleteIAMUser, err)
	}

	if _, err := o.iam.DeletePolicy(ctx, &iam.DeletePolicyInput{PolicyArn: aws.String(policyArn)}); err != nil {
		return provision.Wrap(provision.KindDeleteIAMPolicy, err)
	}

	o.deleteTablesByPrefix(ctx, prefix)

	return nil
}

func (o *Orchestrator) deleteAccessKey(ctx context.Context, prefix, userName string) error {
	key, ok, err := o.keystore.Load(prefix)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if _, err := o.iam.DeleteAccessKey(ctx, &iam.DeleteAccessKeyInput{
		UserName:    aws.String(userName),
		AccessKeyId: aws.String(key.ID),
	}); err != nil {
		return provision.Wrap(provision.KindDeleteAccessKey, err)
	}

	return o.keystore.Delete(prefix)
}

// deleteTablesByPrefix walks ListTables, paginated via
// exclusive_start_table_name, seeded with the prefix itself so that
// lexicographically earlier tables are skipped. It stops as soon as a
// returned name no longer matches the prefix, then makes one final
// best-effort attempt at deleting a table named exactly the prefix, since a
// table paginated out before the cursor could not otherwise be reached.
// Every delete failure in this sweep is logged and ignored: table cleanup
// is best-effort, never fatal to the overall delete.
func (o *Orchestrator) deleteTablesByPrefix(ctx context.Context, prefix string) {
	cursor := aws.String(prefix)

outer:
	for {
		out, err := o.dynamo.ListTables(ctx, &dynamodb.ListTablesInput{
			ExclusiveStartTableName: cursor,
		})
		if err != nil {
			return
		}

		for _, name := range out.TableNames {
			if !strings.HasPrefix(name, prefix) {
				break outer
			}
			_, _ = o.dynamo.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)})
		}

		if out.LastEvaluatedTableName == nil {
			break
		}
		cursor = out.LastEvaluatedTableName
	}

	_, _ = o.dynamo.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(prefix)})
}

func policyDocument(prefix string) map[string]any {
	return map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Effect":   "Allow",
				"Action":   policyActions,
				"Resource": fmt.Sprintf("arn:aws:dynamodb:*:*:table/%s*", prefix),
			},
		},
	}
}

func isEntityAlreadyExists(err error) bool {
	var e *iamTypes.EntityAlreadyExistsException
	return errors.As(err, &e)
}
