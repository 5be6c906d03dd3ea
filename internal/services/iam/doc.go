// Package iam provides the identity and access management operations behind the
// gatehouse API and CLI.
//
// It covers:
//
//   - Registration and local password login
//   - Federated (OIDC) login with just-in-time provisioning
//   - Login session lifecycle (issue, revoke)
//   - Role assignment and role permission replacement
//   - Read-only listings for the admin surfaces
//
// Request Flow:
//
//	Request → Authn (identity) → Enforcer.Require (resolve + predicate)
//	       ↓
//	   Handler → iam.Service → repositories → audit.Recorder
//
// Authorization is never decided here. Callers reach mutation operations only after
// the enforcement middleware has checked the caller's permissions; the Service
// validates input, checks that targets exist, applies the change and records it.
package iam
