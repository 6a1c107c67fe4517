// Package token decodes bearer access credentials into claims without verifying
// their signature.
//
// The client holds no trust root: a credential is accepted as "well-formed", never as
// "authentic". Authenticity is inherited from the fact that the credential was returned
// by the remote authority over an authenticated transport.
//
// # Architecture boundaries
//
// This package owns envelope parsing and expiry evaluation. It does NOT store
// credentials, resolve identities, or map role names onto application roles.
//
// # What this package must NOT do
//
//   - Panic on any input.
//   - Include the raw credential in error messages.
//   - Import goAuthClient or any sibling package.
package token
