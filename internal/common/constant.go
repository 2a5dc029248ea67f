package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the identity
// provider's access token on inbound requests.
const AccessTokenHeaderName = "access_token"
