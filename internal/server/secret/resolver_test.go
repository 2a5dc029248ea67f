package secret

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSMClient struct {
	params map[string]string
}

func (f *fakeSSMClient) GetParameter(_ context.Context, input *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	val, ok := f.params[*input.Name]
	if !ok {
		return nil, fmt.Errorf("parameter not found: %s", *input.Name)
	}
	if !aws.ToBool(input.WithDecryption) {
		return nil, fmt.Errorf("decryption not requested")
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{Name: input.Name, Value: aws.String(val)},
	}, nil
}

func TestSSMResolver_GetSecret(t *testing.T) {
	r := NewSSMResolver(&fakeSSMClient{params: map[string]string{"/secureshare/master-key": "s3cr3t"}})

	val, err := r.GetSecret(context.Background(), "/secureshare/master-key")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", val)

	_, err = r.GetSecret(context.Background(), "/secureshare/missing")
	assert.Error(t, err)
}

func TestEnvResolver_GetSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	r := NewEnvResolver()

	val, err := r.GetSecret(context.Background(), "/secureshare/jwt-secret")
	require.NoError(t, err)
	assert.Equal(t, "env-secret", val)

	_, err = r.GetSecret(context.Background(), "/secureshare/not-set-anywhere")
	assert.Error(t, err)
}

func TestParamNameToEnvVar(t *testing.T) {
	tests := map[string]string{
		"/secureshare/master-key": "MASTER_KEY",
		"/a/b/redis-password":     "REDIS_PASSWORD",
		"plain":                   "PLAIN",
	}
	for in, want := range tests {
		assert.Equal(t, want, paramNameToEnvVar(in), in)
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	r := NewSSMResolver(&fakeSSMClient{params: map[string]string{"/x": "resolved"}})

	v, err := Resolve(ctx, r, "literal")
	require.NoError(t, err)
	assert.Equal(t, "literal", v)

	v, err = Resolve(ctx, r, "ssm:/x")
	require.NoError(t, err)
	assert.Equal(t, "resolved", v)

	_, err = Resolve(ctx, nil, "ssm:/x")
	assert.Error(t, err)
}
