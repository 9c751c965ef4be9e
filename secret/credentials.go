package secret

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Credentials is an explicit AWS access key pair with an optional session
// token. Each field may hold a literal, ${VAR} references or a secretref.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// IsZero reports whether no access key is configured.
func (c Credentials) IsZero() bool {
	return c.AccessKeyID == "" && c.SecretAccessKey == ""
}

// Validate checks that the access key pair is either fully set or empty.
func (c Credentials) Validate() error {
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return ErrIncompleteCredentials
	}
	if c.IsZero() && c.SessionToken != "" {
		return ErrIncompleteCredentials
	}
	return nil
}

// Resolve returns a copy with every field resolved through r.
func (c Credentials) Resolve(ctx context.Context, r *Resolver) (Credentials, error) {
	var out Credentials
	fields := []struct {
		name string
		in   string
		out  *string
	}{
		{"aws_access_key_id", c.AccessKeyID, &out.AccessKeyID},
		{"aws_secret_access_key", c.SecretAccessKey, &out.SecretAccessKey},
		{"aws_session_token", c.SessionToken, &out.SessionToken},
	}
	for _, f := range fields {
		if f.in == "" {
			continue
		}
		v, err := r.ResolveValue(ctx, f.in)
		if err != nil {
			return Credentials{}, fmt.Errorf("resolve %s: %w", f.name, err)
		}
		*f.out = v
	}
	if err := out.Validate(); err != nil {
		return Credentials{}, err
	}
	return out, nil
}

// Provider returns a static AWS credentials provider, or nil when c is zero.
func (c Credentials) Provider() aws.CredentialsProvider {
	if c.IsZero() {
		return nil
	}
	return credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken)
}

// Params returns the credential fields as key parameters, omitting empty ones.
func (c Credentials) Params() map[string]any {
	params := make(map[string]any, 3)
	if c.AccessKeyID != "" {
		params["aws_access_key_id"] = c.AccessKeyID
	}
	if c.SecretAccessKey != "" {
		params["aws_secret_access_key"] = c.SecretAccessKey
	}
	if c.SessionToken != "" {
		params["aws_session_token"] = c.SessionToken
	}
	return params
}

// String masks everything but the access key id.
func (c Credentials) String() string {
	if c.IsZero() {
		return "Credentials{}"
	}
	token := ""
	if c.SessionToken != "" {
		token = ", SessionToken: [REDACTED]"
	}
	return fmt.Sprintf("Credentials{AccessKeyID: %s, SecretAccessKey: [REDACTED]%s}", c.AccessKeyID, token)
}

// GoString keeps %#v from printing secret fields.
func (c Credentials) GoString() string { return c.String() }
