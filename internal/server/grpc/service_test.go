package grpc

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceDesc_MatchesProtoContract(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "..", "proto", filepath.FromSlash(ServiceDesc.Metadata.(string))))
	require.NoError(t, err)

	pkg := regexp.MustCompile(`(?m)^package\s+([\w.]+);`).FindSubmatch(src)
	require.NotNil(t, pkg)
	svc := regexp.MustCompile(`(?m)^service\s+(\w+)\s*\{`).FindSubmatch(src)
	require.NotNil(t, svc)
	assert.Equal(t, ServiceName, string(pkg[1])+"."+string(svc[1]))

	var rpcs []string
	for _, m := range regexp.MustCompile(`(?m)^\s*rpc\s+(\w+)\(`).FindAllSubmatch(src, -1) {
		rpcs = append(rpcs, string(m[1]))
	}
	var methods []string
	for _, m := range ServiceDesc.Methods {
		methods = append(methods, m.MethodName)
	}
	assert.Equal(t, rpcs, methods)
}
