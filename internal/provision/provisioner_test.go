package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasnim.dev/cloud-gatekeeper/internal/resolver"
)

type mockIdentityManager struct {
	identityExistsFunc func(ctx context.Context, name string) (bool, error)
	attachPolicyFunc   func(ctx context.Context, identity, policyName, document string) error
	listIdentitiesFunc func(ctx context.Context) ([]string, error)

	attached int
}

func (m *mockIdentityManager) IdentityExists(ctx context.Context, name string) (bool, error) {
	return m.identityExistsFunc(ctx, name)
}

func (m *mockIdentityManager) AttachPolicy(ctx context.Context, identity, policyName, document string) error {
	m.attached++
	if m.attachPolicyFunc == nil {
		return nil
	}
	return m.attachPolicyFunc(ctx, identity, policyName, document)
}

func (m *mockIdentityManager) ListIdentities(ctx context.Context) ([]string, error) {
	if m.listIdentitiesFunc == nil {
		return nil, nil
	}
	return m.listIdentitiesFunc(ctx)
}

type stubResolver struct {
	res   resolver.ResolvedResource
	calls int
}

func (s *stubResolver) Resolve(ctx context.Context, project string) resolver.ResolvedResource {
	s.calls++
	return s.res
}

func alwaysExists(context.Context, string) (bool, error) { return true, nil }

func TestGrant_AttachesPolicy(t *testing.T) {
	var gotIdentity, gotName, gotDoc string
	iam := &mockIdentityManager{
		identityExistsFunc: alwaysExists,
		attachPolicyFunc: func(ctx context.Context, identity, policyName, document string) error {
			gotIdentity, gotName, gotDoc = identity, policyName, document
			return nil
		},
	}
	res := &stubResolver{res: resolver.ResolvedResource{
		ARN: "arn:aws:s3:::analytics-raw", Kind: resolver.KindStorage, Name: "analytics-raw", Strategy: resolver.StrategyTag,
	}}

	grant, err := New(iam, res).Grant(context.Background(), "alice", ForProject("analytics"), []string{"s3:GetObject"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.calls)
	assert.Equal(t, "alice", gotIdentity)
	assert.Equal(t, "CloudGatekeeper-arn-aws-s3---analytics-raw", gotName)
	assert.Equal(t, gotName, grant.PolicyName)

	var doc policyDocument
	require.NoError(t, json.Unmarshal([]byte(gotDoc), &doc))
	assert.Equal(t, "2012-10-17", doc.Version)
	require.Len(t, doc.Statement, 1)
	assert.Equal(t, "Allow", doc.Statement[0].Effect)
	assert.Equal(t, []string{"s3:GetObject"}, doc.Statement[0].Action)
	assert.Equal(t, []string{"arn:aws:s3:::analytics-raw", "arn:aws:s3:::analytics-raw/*"}, doc.Statement[0].Resource)
}

func TestGrant_ResolvedTargetSkipsResolver(t *testing.T) {
	iam := &mockIdentityManager{identityExistsFunc: alwaysExists}
	res := &stubResolver{}
	target := ForResource(resolver.ResolvedResource{
		ARN: "arn:aws:lambda:us-east-1:1:function:etl", Kind: resolver.KindFunction,
	})

	grant, err := New(iam, res).Grant(context.Background(), "alice", target, nil)
	require.NoError(t, err)
	assert.Zero(t, res.calls)
	assert.Equal(t, []string{"lambda:GetFunction", "lambda:InvokeFunction"}, grant.Permissions)
	assert.Contains(t, grant.Document, `"Resource":["arn:aws:lambda:us-east-1:1:function:etl"]`)
}

func TestGrant_MissingIdentityAttachesNothing(t *testing.T) {
	iam := &mockIdentityManager{
		identityExistsFunc: func(ctx context.Context, name string) (bool, error) { return false, nil },
		listIdentitiesFunc: func(ctx context.Context) ([]string, error) { return []string{"alice", "bob"}, nil },
	}
	res := &stubResolver{}

	_, err := New(iam, res).Grant(context.Background(), "mallory", ForProject("analytics"), []string{"s3:GetObject"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIdentityNotFound)

	var nf *IdentityNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "mallory", nf.Identity)
	assert.Equal(t, []string{"alice", "bob"}, nf.Known)
	assert.Zero(t, iam.attached)
	assert.Zero(t, res.calls)
}

func TestGrant_EmptyIdentityIsNotFound(t *testing.T) {
	iam := &mockIdentityManager{
		identityExistsFunc: func(ctx context.Context, name string) (bool, error) {
			t.Fatal("empty identity must not be looked up")
			return false, nil
		},
	}
	_, err := New(iam, &stubResolver{}).Grant(context.Background(), "", ForProject("p"), []string{"s3:GetObject"})
	assert.ErrorIs(t, err, ErrIdentityNotFound)
	assert.Zero(t, iam.attached)
}

func TestGrant_IdentityCheckErrorIsHard(t *testing.T) {
	iam := &mockIdentityManager{
		identityExistsFunc: func(ctx context.Context, name string) (bool, error) {
			return false, errors.New("AccessDenied")
		},
	}
	_, err := New(iam, &stubResolver{}).Grant(context.Background(), "alice", ForProject("p"), []string{"s3:GetObject"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrIdentityNotFound)
	assert.Contains(t, err.Error(), "AccessDenied")
	assert.Zero(t, iam.attached)
}

func TestGrant_IdentityCheckTimeout(t *testing.T) {
	iam := &mockIdentityManager{
		identityExistsFunc: func(ctx context.Context, name string) (bool, error) {
			<-ctx.Done()
			return false, ctx.Err()
		},
	}
	_, err := New(iam, &stubResolver{}, WithTimeout(10*time.Millisecond)).
		Grant(context.Background(), "alice", ForProject("p"), []string{"s3:GetObject"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, iam.attached)
}

func TestGrant_RaceOnAttachTranslatesNotFound(t *testing.T) {
	iam := &mockIdentityManager{
		identityExistsFunc: alwaysExists,
		attachPolicyFunc: func(ctx context.Context, identity, policyName, document string) error {
			return fmt.Errorf("PutUserPolicy(%s): %w", identity, ErrIdentityNotFound)
		},
		listIdentitiesFunc: func(ctx context.Context) ([]string, error) {
			return nil, errors.New("listing denied")
		},
	}
	res := &stubResolver{res: resolver.Fallback("analytics")}

	_, err := New(iam, res).Grant(context.Background(), "alice", ForProject("analytics"), []string{"s3:GetObject"})
	var nf *IdentityNotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)
	assert.Equal(t, "alice", nf.Identity)
	assert.Empty(t, nf.Known, "listing failure must not mask the original error")
}

func TestGrant_AttachErrorWrapped(t *testing.T) {
	iam := &mockIdentityManager{
		identityExistsFunc: alwaysExists,
		attachPolicyFunc: func(ctx context.Context, identity, policyName, document string) error {
			return errors.New("MalformedPolicyDocument")
		},
	}
	res := &stubResolver{res: resolver.Fallback("analytics")}
	_, err := New(iam, res).Grant(context.Background(), "alice", ForProject("analytics"), []string{"s3:GetObject"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MalformedPolicyDocument")
	assert.NotErrorIs(t, err, ErrIdentityNotFound)
}

func TestGrant_NoPermissionsForUnknownKind(t *testing.T) {
	iam := &mockIdentityManager{identityExistsFunc: alwaysExists}
	res := &stubResolver{res: resolver.ResolvedResource{ARN: "arn:aws:sqs:us-east-1:1:queue", Kind: "sqs"}}
	_, err := New(iam, res).Grant(context.Background(), "alice", ForProject("queue"), nil)
	assert.ErrorIs(t, err, ErrNoPermissions)
	assert.Zero(t, iam.attached)
}

func TestGrant_RepeatedGrantsReuseName(t *testing.T) {
	var names []string
	iam := &mockIdentityManager{
		identityExistsFunc: alwaysExists,
		attachPolicyFunc: func(ctx context.Context, identity, policyName, document string) error {
			names = append(names, policyName)
			return nil
		},
	}
	p := New(iam, &stubResolver{res: resolver.Fallback("analytics")}, WithPolicyPrefix("Gk"))
	_, err := p.Grant(context.Background(), "alice", ForProject("analytics"), []string{"s3:GetObject"})
	require.NoError(t, err)
	_, err = p.Grant(context.Background(), "alice", ForProject("analytics"), []string{"s3:PutObject"})
	require.NoError(t, err)

	require.Len(t, names, 2)
	assert.Equal(t, names[0], names[1])
	assert.True(t, strings.HasPrefix(names[0], "Gk-"))
}

func TestPolicyName_Truncates(t *testing.T) {
	arn := "arn:aws:s3:::" + strings.Repeat("a", 200)
	name := PolicyName(DefaultPolicyPrefix, arn)
	assert.Len(t, name, maxPolicyNameLen)
	assert.Equal(t, name, PolicyName(DefaultPolicyPrefix, arn))
	assert.NotEqual(t, name, PolicyName(DefaultPolicyPrefix, arn+"b"))
}

func TestPolicyDocument_WildcardStorageNotDoubled(t *testing.T) {
	doc, err := PolicyDocument(resolver.ResolvedResource{ARN: "arn:aws:s3:::b/*", Kind: resolver.KindStorage}, []string{"s3:GetObject"})
	require.NoError(t, err)
	assert.Contains(t, doc, `"Resource":["arn:aws:s3:::b/*"]`)
}
