package provision

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"tasnim.dev/cloud-gatekeeper/internal/resolver"
)

const (
	// DefaultPolicyPrefix starts every policy name created by the provisioner.
	DefaultPolicyPrefix = "CloudGatekeeper"

	// maxPolicyNameLen is IAM's limit for inline policy names.
	maxPolicyNameLen = 128
)

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect   string   `json:"Effect"`
	Action   []string `json:"Action"`
	Resource []string `json:"Resource"`
}

// PolicyDocument renders an Allow statement for the actions on the resource.
func PolicyDocument(res resolver.ResolvedResource, actions []string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:   "Allow",
			Action:   actions,
			Resource: policyResources(res),
		}},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// policyResources covers the bucket itself and its objects for storage
// resources.
func policyResources(res resolver.ResolvedResource) []string {
	if res.Kind != resolver.KindStorage || strings.HasSuffix(res.ARN, "/*") {
		return []string{res.ARN}
	}
	return []string{res.ARN, res.ARN + "/*"}
}

// PolicyName derives the inline policy name from the resource ARN, so that
// repeated grants on one resource replace the same policy. Names beyond
// IAM's length limit are truncated and suffixed with a hash of the ARN.
func PolicyName(prefix, arn string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte('-')
	for _, r := range arn {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	name := b.String()
	if len(name) <= maxPolicyNameLen {
		return name
	}

	sum := sha256.Sum256([]byte(arn))
	suffix := "-" + hex.EncodeToString(sum[:])[:8]
	return name[:maxPolicyNameLen-len(suffix)] + suffix
}
